package custody

import (
	"time"

	"reloop/internal/models"
)

// AlertCondition describes when a rule fires. Type selects a registered
// ConditionFunc; Parameters carries its per-rule tuning.
type AlertCondition struct {
	Type       string                 `yaml:"type" json:"type"`
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters"`
}

// AlertAction describes what a fired rule does. The only action the core
// performs itself is publishing an alert event; recipients are carried
// through for downstream notification fan-out.
type AlertAction struct {
	Type       string   `yaml:"type" json:"type"`
	Recipients []string `yaml:"recipients" json:"recipients"`
	Message    string   `yaml:"message" json:"message"`
}

// AlertRule is one declarative custody-monitoring rule. New rules can be
// registered at runtime without code changes as long as their condition
// type has a ConditionFunc.
type AlertRule struct {
	RuleID    string         `yaml:"rule_id" json:"rule_id"`
	Name      string         `yaml:"name" json:"name"`
	Condition AlertCondition `yaml:"condition" json:"condition"`
	Action    AlertAction    `yaml:"action" json:"action"`
}

// ConditionFunc evaluates a rule against the entry just appended and its
// chronological predecessor. prev is nil for the first entry of an asset.
type ConditionFunc func(rule *AlertRule, prev, entry *models.CoCLogEntry) bool

// transportDelayRule flags assets stuck in transport: fires when more than
// max_hours elapsed between entries and the previous state was
// transport_pickup.
func transportDelayRule() AlertRule {
	return AlertRule{
		RuleID: "transport-time-limit",
		Name:   "Transport time limit",
		Condition: AlertCondition{
			Type: "time_limit",
			Parameters: map[string]interface{}{
				"max_hours":      24.0,
				"previous_state": string(models.StateTransportPickup),
			},
		},
		Action: AlertAction{
			Type:    "notify",
			Message: "transport taking too long",
		},
	}
}

func timeLimitCondition(rule *AlertRule, prev, entry *models.CoCLogEntry) bool {
	if prev == nil {
		return false
	}
	wantState, _ := rule.Condition.Parameters["previous_state"].(string)
	if wantState != "" && string(prev.ProcessState) != wantState {
		return false
	}
	maxHours, ok := rule.Condition.Parameters["max_hours"].(float64)
	if !ok || maxHours <= 0 {
		return false
	}
	prevTS, err := time.Parse(time.RFC3339, prev.Timestamp)
	if err != nil {
		return false
	}
	entryTS, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil {
		return false
	}
	return entryTS.Sub(prevTS) > time.Duration(maxHours*float64(time.Hour))
}
