// Package services defines the business logic for recipes, their tags and
// ingredients, and user accounts. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Field-level input problems are reported as
// *validation.Error instead of a sentinel.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-recipe-backend/internal/auth"
)

// Recipe-related errors.
var (
	// ErrRecipeNotFound indicates that the requested recipe does not exist or
	// is owned by another user.
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrInvalidImage is returned when an upload does not decode as a
	// supported image.
	ErrInvalidImage = errors.New("upload a valid image")
)

// Attribute-related errors.
var (
	// ErrTagNotFound indicates that the tag does not exist or is not owned by
	// the current user.
	ErrTagNotFound = errors.New("tag not found")

	// ErrIngredientNotFound is the ingredient counterpart of ErrTagNotFound.
	ErrIngredientNotFound = errors.New("ingredient not found")
)

// User-related errors.
var (
	// ErrEmailTaken is returned when registering or changing to an email that
	// already belongs to an account.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned by IssueToken for an unknown email, a
	// wrong password or an inactive account.
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")

	// ErrUnauthenticated is returned by Authenticate when the token is invalid
	// or its user no longer exists or is inactive. It wraps auth.ErrInvalidToken
	// so the auth middleware can tell a rejected token from a storage failure.
	ErrUnauthenticated = fmt.Errorf("authentication credentials were not provided or are invalid: %w", auth.ErrInvalidToken)
)
