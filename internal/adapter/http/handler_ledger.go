package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/usecase"
)

// LedgerHandler handles HTTP requests for the account ledger.
type LedgerHandler struct {
	ledger *usecase.LedgerUseCase
}

func NewLedgerHandler(ledger *usecase.LedgerUseCase) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

func (h *LedgerHandler) RegisterRoutes(router *mux.Router, auth *AuthMiddleware) {
	router.HandleFunc("/api/v1/ledger/credit", auth.RequireCapability(domain.CapLedgerMint, h.Credit)).Methods("POST")
	router.HandleFunc("/api/v1/ledger/debit", auth.RequireCapability(domain.CapLedgerMove, h.Debit)).Methods("POST")
	router.HandleFunc("/api/v1/ledger/transfer", auth.RequireAuth(h.Transfer)).Methods("POST")
	router.HandleFunc("/api/v1/ledger/burn", auth.RequireCapability(domain.CapLedgerBurn, h.Burn)).Methods("POST")
	router.HandleFunc("/api/v1/ledger/balances/{principal}/{denomination}", auth.RequireAuth(h.GetBalance)).Methods("GET")
	router.HandleFunc("/api/v1/ledger/supply/{denomination}", auth.RequireAuth(h.GetSupply)).Methods("GET")
	router.HandleFunc("/api/v1/ledger/holders/{denomination}", auth.RequireAuth(h.GetHolders)).Methods("GET")
}

type ledgerMoveRequest struct {
	Principal    domain.Principal    `json:"principal"`
	Denomination domain.Denomination `json:"denomination"`
	Amount       uint64              `json:"amount"`
}

type transferRequest struct {
	From         domain.Principal    `json:"from"`
	To           domain.Principal    `json:"to"`
	Denomination domain.Denomination `json:"denomination"`
	Amount       uint64              `json:"amount"`
}

func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req ledgerMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Principal == "" || req.Denomination == "" {
		writeBadRequest(w, "principal and denomination are required")
		return
	}
	claims := ClaimsFrom(r.Context())
	if err := h.ledger.Credit(r.Context(), claims.Principal, req.Principal, req.Denomination, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "credit applied", nil)
}

func (h *LedgerHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req ledgerMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Principal == "" || req.Denomination == "" {
		writeBadRequest(w, "principal and denomination are required")
		return
	}
	claims := ClaimsFrom(r.Context())
	if err := h.ledger.Debit(r.Context(), claims.Principal, req.Principal, req.Denomination, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "debit applied", nil)
}

// Transfer moves the caller's own funds; moving someone else's requires
// the ledger:move capability.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.From == "" || req.To == "" || req.Denomination == "" {
		writeBadRequest(w, "from, to and denomination are required")
		return
	}
	claims := ClaimsFrom(r.Context())
	if req.From != claims.Principal && !capabilitiesOf(claims).Has(domain.CapLedgerMove) {
		writeForbidden(w, "transfers from another principal require capability "+string(domain.CapLedgerMove))
		return
	}
	if err := h.ledger.Transfer(r.Context(), claims.Principal, req.From, req.To, req.Denomination, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "transfer applied", nil)
}

func (h *LedgerHandler) Burn(w http.ResponseWriter, r *http.Request) {
	var req ledgerMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Principal == "" || req.Denomination == "" {
		writeBadRequest(w, "principal and denomination are required")
		return
	}
	claims := ClaimsFrom(r.Context())
	if err := h.ledger.Burn(r.Context(), claims.Principal, req.Principal, req.Denomination, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "burn applied", nil)
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	principal := domain.Principal(vars["principal"])
	denomination := domain.Denomination(vars["denomination"])

	balance := h.ledger.BalanceOf(principal, denomination)
	writeSuccess(w, http.StatusOK, "balance", map[string]interface{}{
		"principal":    principal,
		"denomination": denomination,
		"balance":      balance,
	})
}

func (h *LedgerHandler) GetSupply(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	denomination := domain.Denomination(vars["denomination"])

	supply := h.ledger.SupplyOf(denomination)
	writeSuccess(w, http.StatusOK, "supply", map[string]interface{}{
		"denomination": denomination,
		"issued":       supply.Issued,
		"burned":       supply.Burned,
		"escrowed":     supply.Escrowed,
		"circulating":  supply.Issued - supply.Burned,
	})
}

func (h *LedgerHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	denomination := domain.Denomination(vars["denomination"])

	holders := h.ledger.HoldersOf(denomination)
	writeSuccess(w, http.StatusOK, "holders", map[string]interface{}{
		"denomination": denomination,
		"holders":      holders,
	})
}
