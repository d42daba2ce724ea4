package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/usecase"
)

// TallyHandler handles HTTP requests for vote tallies.
type TallyHandler struct {
	tally *usecase.TallyUseCase
}

func NewTallyHandler(tally *usecase.TallyUseCase) *TallyHandler {
	return &TallyHandler{tally: tally}
}

func (h *TallyHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware) {
	router.HandleFunc("/api/v1/tallies", auth.RequireCapability(domain.CapTallyOpen, h.Open)).Methods("POST")
	router.HandleFunc("/api/v1/tallies/{id}", auth.RequireAuth(h.Get)).Methods("GET")
	router.HandleFunc("/api/v1/tallies/{id}/vote", auth.RequireAuth(h.Vote)).Methods("POST")
	router.HandleFunc("/api/v1/tallies/{id}/resolve", auth.RequireAuth(h.Resolve)).Methods("POST")
}

type openTallyRequest struct {
	QuorumNumerator   uint32    `json:"quorum_numerator"`
	QuorumDenominator uint32    `json:"quorum_denominator"`
	Deadline          time.Time `json:"deadline"`
	EarlyRule         string    `json:"early_rule,omitempty"`
}

type voteRequest struct {
	Choice domain.VoteChoice `json:"choice"`
	Weight *uint64           `json:"weight,omitempty"`
}

func (h *TallyHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openTallyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	claims := ClaimsFrom(r.Context())
	id, err := h.tally.Open(r.Context(), claims.Principal,
		req.QuorumNumerator, req.QuorumDenominator, req.Deadline, req.EarlyRule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "tally opened", map[string]interface{}{"id": id})
}

// Vote casts the caller's ballot. Supplying an explicit weight instead
// of the configured weight source requires the tally:weigh capability.
func (h *TallyHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	claims := ClaimsFrom(r.Context())
	if req.Weight != nil && !capabilitiesOf(claims).Has(domain.CapTallyWeigh) {
		writeForbidden(w, "explicit weights require capability "+string(domain.CapTallyWeigh))
		return
	}

	weight, err := h.tally.CastVote(r.Context(), id, claims.Principal, req.Weight, req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "vote cast", map[string]interface{}{
		"tally":  id,
		"voter":  claims.Principal,
		"weight": weight,
		"choice": req.Choice,
	})
}

func (h *TallyHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims := ClaimsFrom(r.Context())
	outcome, err := h.tally.Resolve(r.Context(), id, claims.Principal)
	if err != nil {
		// A repeat resolve is not a failure; surface the cached outcome.
		if domain.IsKind(err, domain.KindAlreadyResolved) {
			writeSuccess(w, http.StatusOK, "tally already resolved", map[string]interface{}{
				"id":      id,
				"outcome": outcome,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "tally resolved", map[string]interface{}{
		"id":      id,
		"outcome": outcome,
	})
}

func (h *TallyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.tally.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "tally", view)
}
