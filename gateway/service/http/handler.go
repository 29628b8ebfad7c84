package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"reloop/custody"
	core "reloop/gateway/service/core"
	"reloop/internal/models"
	"reloop/matching"
	"reloop/routing"
	"reloop/storage/store"
)

// Handler encapsulates the logic for handling HTTP API requests
type Handler struct {
	svc    *core.Service
	logger *log.Logger
}

// NewHandler creates a new Handler
func NewHandler(s *core.Service, l *log.Logger) *Handler {
	return &Handler{svc: s, logger: l}
}

// Register wires all routes onto the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/matches", h.MatchFeedstock)
	mux.HandleFunc("GET /v1/matches/{lotID}", h.GetMatches)
	mux.HandleFunc("POST /v1/processors", h.RegisterProcessor)
	mux.HandleFunc("POST /v1/entrustments", h.CreateEntrustment)
	mux.HandleFunc("POST /v1/assets/{assetID}/entries", h.AddEntry)
	mux.HandleFunc("GET /v1/assets/{assetID}/history", h.GetAssetHistory)
	mux.HandleFunc("GET /v1/assets/{assetID}/integrity", h.VerifyIntegrity)
	mux.HandleFunc("GET /v1/assets/{assetID}/audit", h.ExportForAudit)
	mux.HandleFunc("POST /v1/assets/{assetID}/sensor-evidence", h.AddSensorEvidence)
	mux.HandleFunc("POST /v1/routes", h.PlanRoute)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// MatchFeedstock handles POST /v1/matches requests
func (h *Handler) MatchFeedstock(w http.ResponseWriter, r *http.Request) {
	var lot models.FeedstockLot
	if !h.decodeJSON(w, r, &lot) {
		return
	}

	matches, err := h.svc.MatchFeedstock(r.Context(), &lot)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"lot_id":  lot.ID,
		"matches": matches,
	}, http.StatusOK)
}

// GetMatches handles GET /v1/matches/{lotID} requests
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	lotID := r.PathValue("lotID")

	matches, err := h.svc.GetMatches(r.Context(), lotID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"lot_id":  lotID,
		"matches": matches,
	}, http.StatusOK)
}

// RegisterProcessor handles POST /v1/processors requests
func (h *Handler) RegisterProcessor(w http.ResponseWriter, r *http.Request) {
	var p models.ProcessorCandidate
	if !h.decodeJSON(w, r, &p) {
		return
	}

	if err := h.svc.RegisterProcessor(r.Context(), &p); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{"id": p.ID, "status": "registered"}, http.StatusCreated)
}

// CreateEntrustment handles POST /v1/entrustments requests
func (h *Handler) CreateEntrustment(w http.ResponseWriter, r *http.Request) {
	var reqPayload struct {
		AgreementID string          `json:"agreement_id"`
		EntrustorID string          `json:"entrustor_id"`
		CustodianID string          `json:"custodian_id"`
		Evidence    json.RawMessage `json:"evidence"`
	}
	if !h.decodeJSON(w, r, &reqPayload) {
		return
	}

	twin, err := h.svc.CreateEntrustment(r.Context(), reqPayload.AgreementID, reqPayload.EntrustorID, reqPayload.CustodianID, rawEvidence(reqPayload.Evidence))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, twin, http.StatusCreated)
}

// AddEntry handles POST /v1/assets/{assetID}/entries requests
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("assetID")

	var reqPayload struct {
		ActorID     string              `json:"actor_id"`
		NewState    models.ProcessState `json:"new_state"`
		Evidence    json.RawMessage     `json:"evidence"`
		Geolocation *models.Geolocation `json:"geolocation,omitempty"`
		Notes       string              `json:"notes,omitempty"`
	}
	if !h.decodeJSON(w, r, &reqPayload) {
		return
	}

	entry, err := h.svc.AddCoCEntry(r.Context(), assetID, reqPayload.ActorID, reqPayload.NewState, rawEvidence(reqPayload.Evidence), reqPayload.Geolocation, reqPayload.Notes)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, entry, http.StatusCreated)
}

// GetAssetHistory handles GET /v1/assets/{assetID}/history requests
func (h *Handler) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("assetID")

	twin, entries, err := h.svc.GetAssetHistory(r.Context(), assetID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"twin":    twin,
		"entries": entries,
	}, http.StatusOK)
}

// VerifyIntegrity handles GET /v1/assets/{assetID}/integrity requests
func (h *Handler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("assetID")

	report, err := h.svc.VerifyChainIntegrity(r.Context(), assetID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, report, http.StatusOK)
}

// ExportForAudit handles GET /v1/assets/{assetID}/audit requests
func (h *Handler) ExportForAudit(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("assetID")

	export, err := h.svc.ExportForAudit(r.Context(), assetID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, export, http.StatusOK)
}

// AddSensorEvidence handles POST /v1/assets/{assetID}/sensor-evidence requests
func (h *Handler) AddSensorEvidence(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("assetID")

	var reqPayload struct {
		SensorReadings []models.SensorReading `json:"sensor_readings"`
	}
	if !h.decodeJSON(w, r, &reqPayload) {
		return
	}

	hash, err := h.svc.AddSensorEvidence(r.Context(), assetID, reqPayload.SensorReadings)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{"evidence_hash": hash}, http.StatusCreated)
}

// PlanRoute handles POST /v1/routes requests
func (h *Handler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	var reqPayload struct {
		Stops       []routing.Stop      `json:"stops"`
		Constraints routing.Constraints `json:"constraints"`
	}
	if !h.decodeJSON(w, r, &reqPayload) {
		return
	}

	route, err := h.svc.PlanRoute(r.Context(), reqPayload.Stops, reqPayload.Constraints)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, route, http.StatusOK)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "gateway",
	}

	h.respondJSON(w, resp, http.StatusOK)
}

// decodeJSON parses the request body, enforcing content type and size.
// Returns false if a response has already been written.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		h.respondError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return false
	}
	if r.ContentLength > 10*1024*1024 { // 10MB limit
		h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Printf("HTTP Handler: Failed to parse JSON request: %v", err)
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	return true
}

// respondDomainError maps domain error kinds onto HTTP status codes
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		transitionErr *custody.InvalidTransitionError
		registryErr   *matching.RegistryError
	)

	statusCode := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.As(err, &transitionErr), errors.Is(err, store.ErrStateConflict):
		statusCode = http.StatusConflict
	case errors.As(err, &registryErr):
		statusCode = http.StatusServiceUnavailable
	}

	if statusCode == http.StatusInternalServerError {
		h.logger.Printf("HTTP Handler: Internal error: %v", err)
	}
	h.respondError(w, err.Error(), statusCode)
}

// respondJSON sends JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("HTTP Handler: Failed to encode JSON response: %v", err)
		// Cannot send error to client at this point
	}
}

// respondError sends error response
func (h *Handler) respondError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}

	h.respondJSON(w, errorResp, statusCode)
}

// rawEvidence keeps absent evidence distinguishable from JSON null so the
// core can reject missing payloads.
func rawEvidence(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
