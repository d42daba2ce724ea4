package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/usecase"
)

// QueueHandler handles HTTP requests for scheduled actions.
type QueueHandler struct {
	queue *usecase.QueueUseCase
}

func NewQueueHandler(queue *usecase.QueueUseCase) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware) {
	router.HandleFunc("/api/v1/actions", auth.RequireCapability(domain.CapQueueSchedule, h.Schedule)).Methods("POST")
	router.HandleFunc("/api/v1/actions/{id}", auth.RequireAuth(h.Get)).Methods("GET")
	router.HandleFunc("/api/v1/actions/{id}/execute", auth.RequireAuth(h.Execute)).Methods("POST")
	router.HandleFunc("/api/v1/actions/{id}/cancel", auth.RequireAuth(h.Cancel)).Methods("POST")
}

type scheduleRequest struct {
	NotBefore time.Time       `json:"not_before"`
	NotAfter  *time.Time      `json:"not_after,omitempty"`
	Condition string          `json:"condition,omitempty"`
	Effect    string          `json:"effect,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Escrow    *domain.Escrow  `json:"escrow,omitempty"`
}

func (h *QueueHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	claims := ClaimsFrom(r.Context())
	// Escrow comes out of the caller's own balance unless they can move
	// other principals' funds.
	if req.Escrow != nil && req.Escrow.Principal != claims.Principal &&
		!capabilitiesOf(claims).Has(domain.CapLedgerMove) {
		writeForbidden(w, "escrowing another principal's funds requires capability "+string(domain.CapLedgerMove))
		return
	}

	id, err := h.queue.Schedule(r.Context(), claims.Principal,
		req.NotBefore, req.NotAfter, req.Condition, req.Effect, req.Params, req.Escrow)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "action scheduled", map[string]interface{}{"id": id})
}

// Execute attempts the action. Repeated calls after success return the
// cached executed action.
func (h *QueueHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims := ClaimsFrom(r.Context())
	action, err := h.queue.TryExecute(r.Context(), id, claims.Principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "action executed", action)
}

func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims := ClaimsFrom(r.Context())
	action, err := h.queue.Cancel(r.Context(), id, claims.Principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "action cancelled", action)
}

func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	action, err := h.queue.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "action", action)
}
