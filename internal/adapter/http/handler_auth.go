package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// Operator is a configured API caller: a bcrypt hash of its secret and
// the capabilities its tokens will carry.
type Operator struct {
	SecretHash   string
	Capabilities []domain.Capability
}

// AuthHandler exchanges operator credentials for bearer tokens.
type AuthHandler struct {
	operators map[string]Operator
	verifier  ports.SecretVerifier
	tokens    ports.TokenService
	logger    logger.Logger
}

func NewAuthHandler(operators map[string]Operator, verifier ports.SecretVerifier,
	tokens ports.TokenService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		operators: operators,
		verifier:  verifier,
		tokens:    tokens,
		logger:    log,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/auth/token", h.IssueToken).Methods("POST")
}

type tokenRequest struct {
	OperatorID string `json:"operator_id"`
	Secret     string `json:"secret"`
}

type tokenResponse struct {
	Token        string              `json:"token"`
	Principal    domain.Principal    `json:"principal"`
	Capabilities []domain.Capability `json:"capabilities"`
}

// IssueToken validates an operator secret and returns a signed token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.OperatorID == "" || req.Secret == "" {
		writeBadRequest(w, "operator_id and secret are required")
		return
	}

	op, ok := h.operators[req.OperatorID]
	if !ok {
		h.logger.Warn(r.Context(), "token request for unknown operator", map[string]interface{}{
			"operator": req.OperatorID,
			"ip":       clientIP(r),
		})
		writeUnauthorized(w, "invalid credentials")
		return
	}
	valid, err := h.verifier.Verify(req.Secret, op.SecretHash)
	if err != nil || !valid {
		h.logger.Warn(r.Context(), "token request with bad secret", map[string]interface{}{
			"operator": req.OperatorID,
			"ip":       clientIP(r),
		})
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(ports.TokenClaims{
		Principal:    domain.Principal(req.OperatorID),
		Capabilities: op.Capabilities,
	})
	if err != nil {
		h.logger.Error(r.Context(), "failed to issue token", err, map[string]interface{}{
			"operator": req.OperatorID,
		})
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "token issued", tokenResponse{
		Token:        token,
		Principal:    domain.Principal(req.OperatorID),
		Capabilities: op.Capabilities,
	})
}
