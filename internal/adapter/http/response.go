package http

import (
	"encoding/json"
	"net/http"

	"github.com/veracore/veracore/pkg/apperror"
)

// Envelope is the uniform response shape.
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries the machine-readable failure details.
type ErrorBody struct {
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

// writeError maps a typed engine failure to its HTTP shape.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.FromDomain(err)
	writeJSON(w, appErr.Status, Envelope{
		Status:  false,
		Message: appErr.Message,
		Error:   &ErrorBody{Code: appErr.Code, Retryable: appErr.Retryable},
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status:  false,
		Message: message,
		Error:   &ErrorBody{Code: "INVALID_PAYLOAD"},
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, Envelope{
		Status:  false,
		Message: message,
		Error:   &ErrorBody{Code: "UNAUTHORIZED"},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusForbidden, Envelope{
		Status:  false,
		Message: message,
		Error:   &ErrorBody{Code: "UNAUTHORIZED"},
	})
}
