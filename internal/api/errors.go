package api

import (
	"errors"
	"fmt"
	"net/http"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/editor"
	"inventory-tracker/internal/service"
	"inventory-tracker/internal/store"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	CodeInvalidRequest = "InvalidRequest"
	CodeValidation     = "ValidationError"
	CodeUnauthorized   = "Unauthorized"
	CodeNotFound       = "NotFound"
	CodeEditConflict   = "EditConflict"
	CodeRemote         = "RemoteError"
)

// StandardError is the body of every error response
type StandardError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *StandardError) Error() string {
	return e.Message
}

// HTTPStatus returns the status code for the error
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEditConflict:
		return http.StatusConflict
	case CodeRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newStandardError(code, message, details string) *StandardError {
	return &StandardError{Code: code, Message: message, Details: details}
}

// toStandardError classifies domain errors. Anything unrecognised comes
// from the store or the broker and is reported as a remote failure with
// the backend's text.
func toStandardError(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}

	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		return newStandardError(CodeValidation, verr.Message, fmt.Sprintf("Field: %s", verr.Field))
	}

	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidNickname):
		return newStandardError(CodeValidation, err.Error(), "")

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, service.ErrNotSignedIn):
		return newStandardError(CodeUnauthorized, "not signed in", err.Error())

	case errors.Is(err, editor.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return newStandardError(CodeNotFound, "not found", err.Error())

	case errors.Is(err, editor.ErrEditInProgress),
		errors.Is(err, editor.ErrCommitPending),
		errors.Is(err, editor.ErrNoActiveEdit),
		errors.Is(err, editor.ErrWrongDraft):
		return newStandardError(CodeEditConflict, err.Error(), "")

	case errors.Is(err, editor.ErrUnsupportedKey), errors.Is(err, editor.ErrUnknownKind):
		return newStandardError(CodeInvalidRequest, err.Error(), "")
	}

	return newStandardError(CodeRemote, "remote operation failed", err.Error())
}

func writeError(c *gin.Context, err error) {
	se := toStandardError(err)
	c.AbortWithStatusJSON(se.HTTPStatus(), se)
}

func writeBindError(c *gin.Context, err error) {
	writeError(c, newStandardError(CodeInvalidRequest, "Invalid request body", err.Error()))
}
