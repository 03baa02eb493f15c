// Package services – UserService
//
// UserService handles account registration, credential exchange for bearer
// tokens, self-service profile updates and token authentication for the HTTP
// middleware. Passwords are stored as argon2id hashes; tokens are HS256 JWTs
// carrying the user id.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/auth"
	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/utils"
	"github.com/tbourn/go-recipe-backend/internal/validation"
)

// RegisterInput is the account creation payload.
type RegisterInput struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=5,max=128"`
	Name     string `json:"name"     validate:"required,notblank,max=255"`
}

// CredentialsInput is exchanged for a token.
type CredentialsInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput updates the caller's own account; nil fields are unchanged.
type ProfileInput struct {
	Email    *string `json:"email"    validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=5,max=128"`
	Name     *string `json:"name"     validate:"omitempty,notblank,max=255"`
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
	Verify(token string) (uint, error)
}

// UserService implements the account use-cases.
type UserService struct {
	DB        *gorm.DB
	Tokens    TokenIssuer
	Validator *validation.Validator
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, tokens TokenIssuer) *UserService {
	return &UserService{DB: db, Tokens: tokens, Validator: validation.New()}
}

func (s *UserService) tracer() trace.Tracer { return otel.Tracer("services/UserService") }

func (s *UserService) validate(in any) error {
	if s.Validator == nil {
		s.Validator = validation.New()
	}
	return s.Validator.Validate(in)
}

// Register creates an active account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "Register")
	defer span.End()

	in.Email = utils.NormalizeEmail(in.Email)
	in.Name = utils.NormalizeName(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: in.Email, Name: in.Name, PasswordHash: hash, IsActive: true}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// IssueToken checks the credentials and returns a signed token.
func (s *UserService) IssueToken(ctx context.Context, in CredentialsInput) (string, error) {
	ctx, span := s.tracer().Start(ctx, "IssueToken")
	defer span.End()

	if err := s.validate(in); err != nil {
		return "", err
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, utils.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !u.IsActive || !auth.VerifyPassword(u.PasswordHash, in.Password) {
		return "", ErrInvalidCredentials
	}
	return s.Tokens.Issue(u.ID)
}

// Authenticate resolves a bearer token to an active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "Authenticate")
	defer span.End()

	id, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUnauthenticated
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	return u, nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	return u, notFound(err, ErrUnauthenticated)
}

// UpdateMe applies in to the caller's account. A new password is re-hashed.
func (s *UserService) UpdateMe(ctx context.Context, userID uint, in ProfileInput) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateMe", trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	if in.Email != nil {
		e := utils.NormalizeEmail(*in.Email)
		in.Email = &e
	}
	if in.Name != nil {
		n := utils.NormalizeName(*in.Name)
		in.Name = &n
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	if err := repo.UpdateUserFields(ctx, s.DB, userID, fields); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return s.Me(ctx, userID)
}

// compile-time check
var _ TokenIssuer = (*auth.TokenService)(nil)
