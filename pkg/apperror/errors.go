package apperror

import (
	"errors"
	"net/http"

	"github.com/veracore/veracore/internal/domain"
)

// AppError is the HTTP-facing shape of an engine failure.
type AppError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

// FromDomain maps a typed engine error onto an HTTP status. Retryable
// outcomes (ConditionNotMet, TooEarly) are flagged so callers can
// distinguish "not due yet" from misuse.
func FromDomain(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnauthorized:
		status = http.StatusForbidden
	case domain.KindInvalidPayload:
		status = http.StatusBadRequest
	case domain.KindInsufficientBalance, domain.KindOverflow:
		status = http.StatusUnprocessableEntity
	case domain.KindInvalidTransition, domain.KindAlreadyVoted, domain.KindAlreadyResolved,
		domain.KindNotPending, domain.KindDeadlinePassed, domain.KindExpired,
		domain.KindNotYetResolvable:
		status = http.StatusConflict
	case domain.KindTooEarly, domain.KindConditionNotMet:
		status = http.StatusConflict
	case "":
		return &AppError{
			Code:    "INTERNAL_ERROR",
			Message: "an unexpected error occurred",
			Status:  http.StatusInternalServerError,
		}
	}
	return &AppError{
		Code:      string(kind),
		Message:   err.Error(),
		Status:    status,
		Retryable: domain.Retryable(err),
	}
}
