// Package handlers exposes the recipe API over HTTP.
//
// Handlers are transport-thin: they decode input, call application services
// and translate results (and sentinel errors) into HTTP responses. All routes
// except user registration and token issuance expect middleware.RequireAuth
// to have run.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RecipeService is the recipe use-case surface consumed by RecipeHandler.
type RecipeService interface {
	List(ctx context.Context, userID uint, f repo.RecipeFilter) ([]domain.Recipe, int64, error)
	Stats(ctx context.Context, userID uint) (repo.RecipeStats, error)
	Get(ctx context.Context, userID, id uint) (*domain.Recipe, error)
	Create(ctx context.Context, userID uint, in services.RecipeInput, idemKey string) (*domain.Recipe, bool, error)
	Update(ctx context.Context, userID, id uint, in services.RecipeInput, partial bool) (*domain.Recipe, error)
	Delete(ctx context.Context, userID, id uint) error
	UploadImage(ctx context.Context, userID, id uint, data []byte) (*domain.Recipe, error)
}

// AttrService is the tag/ingredient use-case surface consumed by AttrHandler.
type AttrService[T domain.Attribute] interface {
	List(ctx context.Context, userID uint, assignedOnly bool) ([]T, error)
	Get(ctx context.Context, userID, id uint) (*T, error)
	Rename(ctx context.Context, userID, id uint, in services.NameInput) (*T, error)
	Delete(ctx context.Context, userID, id uint) error
}

// UserService is the account surface consumed by UserHandler.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	IssueToken(ctx context.Context, in services.CredentialsInput) (string, error)
	Me(ctx context.Context, userID uint) (*domain.User, error)
	UpdateMe(ctx context.Context, userID uint, in services.ProfileInput) (*domain.User, error)
}

//
// Helpers
//

// callerID returns the authenticated user. Routes are mounted behind
// RequireAuth, so a missing id is a wiring error answered with 401.
func callerID(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication credentials were not provided")
	}
	return id, ok
}

// pathID parses the :id route parameter. Anything that is not a positive
// integer cannot name a resource and is answered with 404.
func pathID(c *gin.Context, what string) (uint, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, what+" not found")
		return 0, false
	}
	return id, true
}

// apiError is an error response that has not been written yet.
type apiError struct {
	status int
	code   string
	msg    string
	fields map[string]string
}

func (e *apiError) write(c *gin.Context) { failFields(c, e.status, e.code, e.msg, e.fields) }

func validationError(fields map[string]string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: ErrCodeValidation, msg: "validation failed", fields: fields}
}

// readJSON decodes body into dst. An empty body decodes as {}. Type
// mismatches are reported against the offending field.
func readJSON(body io.Reader, dst any) *apiError {
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		return &apiError{status: http.StatusRequestEntityTooLarge, code: ErrCodePayloadTooLarge, msg: "request body too large"}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return validationError(map[string]string{typeErr.Field: "must be a valid " + jsonKind(typeErr.Type.Kind().String())})
	default:
		return &apiError{status: http.StatusBadRequest, code: ErrCodeBadRequest, msg: "invalid JSON body"}
	}
}

// decodeJSON is readJSON that answers the request on failure.
func decodeJSON(c *gin.Context, dst any) bool {
	if e := readJSON(c.Request.Body, dst); e != nil {
		e.write(c)
		return false
	}
	return true
}

// jsonKind names a Go kind the way API clients think about JSON values.
func jsonKind(kind string) string {
	switch {
	case strings.HasPrefix(kind, "int"), strings.HasPrefix(kind, "uint"):
		return "integer"
	case strings.HasPrefix(kind, "float"):
		return "number"
	case kind == "slice" || kind == "array":
		return "list"
	case kind == "struct" || kind == "map":
		return "object"
	case kind == "bool":
		return "boolean"
	default:
		return kind
	}
}

// truthy interprets boolean-ish query values ("1", "true", "yes").
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
