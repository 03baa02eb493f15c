// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Every error response carries an HTTP status and one code.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "validation failed",
//	  "fields": {"price": "must be a valid decimal number"}
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/validation"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidImage       = "invalid_image"
	ErrCodeInvalidCredentials = "invalid_credentials"
)

// respondError maps a service error to the error envelope. Unknown errors
// become 500 and are logged by fail.
func respondError(c *gin.Context, err error) {
	if ve, ok := validation.As(err); ok {
		failValidation(c, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, services.ErrRecipeNotFound),
		errors.Is(err, services.ErrTagNotFound),
		errors.Is(err, services.ErrIngredientNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidImage):
		failFields(c, http.StatusBadRequest, ErrCodeInvalidImage, err.Error(), map[string]string{"image": err.Error()})
	case errors.Is(err, services.ErrEmailTaken):
		failValidation(c, map[string]string{"email": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCredentials, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
