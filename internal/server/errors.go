package server

import (
	"context"
	"errors"
	"net/http"

	"NavLedger/internal/errs"
	"NavLedger/internal/ingestion"
)

type errorBody struct {
	Code     string `json:"code"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func badRequest(msg string) error { return &paramError{msg: msg} }

// statusFor maps an error to its HTTP status and body. Ledger errors map by
// category; anything uncoded is an internal error and its text is not exposed.
func statusFor(err error) (int, errorBody) {
	var pe *paramError
	if errors.As(err, &pe) {
		return http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: pe.msg}
	}
	if errors.Is(err, ingestion.ErrInvalidPayload) {
		return http.StatusBadRequest, errorBody{Code: "INVALID_PAYLOAD", Message: err.Error()}
	}

	if code, ok := errs.CodeOf(err); ok {
		cat := code.Category()
		return categoryStatus(cat), errorBody{Code: code.String(), Category: cat.String(), Message: err.Error()}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errorBody{Code: "TIMEOUT", Message: "request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return 499, errorBody{Code: "CANCELLED", Message: "request cancelled"}
	}
	return http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"}
}

func categoryStatus(c errs.Category) int {
	switch c {
	case errs.CategoryValidation:
		return http.StatusBadRequest
	case errs.CategoryArithmetic:
		return http.StatusUnprocessableEntity
	case errs.CategoryState:
		return http.StatusConflict
	case errs.CategoryAuthorization:
		return http.StatusForbidden
	case errs.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
