package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/usecase"
)

// RegistryHandler handles HTTP requests for entity records.
type RegistryHandler struct {
	registry *usecase.RegistryUseCase
}

func NewRegistryHandler(registry *usecase.RegistryUseCase) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

func (h *RegistryHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware) {
	router.HandleFunc("/api/v1/entities", auth.RequireCapability(domain.CapRegistryWrite, h.Create)).Methods("POST")
	router.HandleFunc("/api/v1/entities", auth.RequireAuth(h.ListByOwner)).Methods("GET")
	router.HandleFunc("/api/v1/entities/{id}", auth.RequireAuth(h.Get)).Methods("GET")
	router.HandleFunc("/api/v1/entities/{id}/transition", auth.RequireAuth(h.Transition)).Methods("POST")
}

type createEntityRequest struct {
	Kind    domain.Kind      `json:"kind"`
	Owner   domain.Principal `json:"owner,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

type transitionRequest struct {
	Target domain.Status `json:"target"`
}

func (h *RegistryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Kind == "" {
		writeBadRequest(w, "kind is required")
		return
	}
	claims := ClaimsFrom(r.Context())
	owner := req.Owner
	if owner == "" {
		owner = claims.Principal
	}

	id, err := h.registry.Create(r.Context(), req.Kind, owner, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "entity created", map[string]interface{}{"id": id})
}

// Transition applies the kind's transition table under the caller's
// token capabilities.
func (h *RegistryHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Target == "" {
		writeBadRequest(w, "target status is required")
		return
	}
	claims := ClaimsFrom(r.Context())
	if err := h.registry.Transition(r.Context(), id, req.Target, claims.Principal, capabilitiesOf(claims)); err != nil {
		writeError(w, err)
		return
	}
	record, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entity transitioned", record)
}

func (h *RegistryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entity", record)
}

func (h *RegistryHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	owner := domain.Principal(r.URL.Query().Get("owner"))
	if owner == "" {
		owner = claims.Principal
	}
	ids := h.registry.ListByOwner(owner)
	writeSuccess(w, http.StatusOK, "entities", map[string]interface{}{
		"owner": owner,
		"ids":   ids,
	})
}

// pathID parses the {id} path variable, writing the error response
// itself on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeBadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
