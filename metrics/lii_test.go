package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reloop/metrics"
)

func TestCalculateLII(t *testing.T) {
	m := metrics.LoopMetrics{
		SRLTons:           100,
		NodesActivated:    8,
		CarbonGirmAnchors: 60,
		LocalLoopsClosed:  3,
		CRLEvents:         2,
	}
	// 0.35*100 + 0.20*8 + 0.25*60 + 0.15*3 - 0.05*2
	assert.InDelta(t, 51.95, metrics.CalculateLII(m), 1e-9)
}

func TestCalculateLIIFloorsAtZero(t *testing.T) {
	m := metrics.LoopMetrics{SRLTons: 1, CRLEvents: 1000}
	assert.Equal(t, 0.0, metrics.CalculateLII(m))
}

func TestTargetLII(t *testing.T) {
	// Month 1: 0.35*50 + 0.20*6 + 0.25*30 + 0.15*2
	assert.InDelta(t, 26.5, metrics.TargetLII(1), 1e-9)
	// Month 2: 0.35*150 + 0.20*10 + 0.25*100 + 0.15*4
	assert.InDelta(t, 80.1, metrics.TargetLII(2), 1e-9)
	// Later months hold the month-2 bar.
	assert.Equal(t, metrics.TargetLII(2), metrics.TargetLII(7))
}

func TestCalculateProgress(t *testing.T) {
	current := metrics.LoopMetrics{
		SRLTons:           25,
		NodesActivated:    3,
		CarbonGirmAnchors: 15,
		LocalLoopsClosed:  1,
	}
	p := metrics.CalculateProgress(current, 1)

	assert.InDelta(t, 13.25, p.LII, 1e-9)
	assert.InDelta(t, 26.5, p.TargetLII, 1e-9)
	assert.InDelta(t, 50.0, p.PercentComplete, 1e-9)
	assert.InDelta(t, 50.0, p.Breakdown["srl_tons"].PercentComplete, 1e-9)
	assert.InDelta(t, 50.0, p.Breakdown["nodes_activated"].PercentComplete, 1e-9)
	assert.Equal(t, 100.0, p.Breakdown["crl_events"].PercentComplete)

	current.CRLEvents = 1
	p = metrics.CalculateProgress(current, 1)
	assert.Equal(t, 0.0, p.Breakdown["crl_events"].PercentComplete)
}

func TestLIIDeltaAndActivation(t *testing.T) {
	before := metrics.LoopMetrics{SRLTons: 10}
	after := before
	after.SRLTons = 20
	after.LocalLoopsClosed = 1

	delta := metrics.LIIDelta(before, after)
	assert.InDelta(t, 3.65, delta, 1e-9) // 0.35*10 + 0.15*1

	assert.True(t, metrics.MeetsActivationThreshold(delta, 3.65))
	assert.True(t, metrics.MeetsActivationThreshold(delta, 2))
	assert.False(t, metrics.MeetsActivationThreshold(delta, 5))
}
