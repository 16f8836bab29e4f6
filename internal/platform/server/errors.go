package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnbalanced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {"error": ..., "request_id": ...}. Details of
// internal errors stay in the log.
func WriteError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, apperr.ErrIntegrityViolation) {
		msg = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg, "request_id": c.GetString(requestIDKey)})
}

// BindError reports a malformed request body.
func BindError(c *gin.Context, err error) {
	WriteError(c, apperr.Invalid("body", "%s", err.Error()))
}
