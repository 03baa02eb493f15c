package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tbourn/go-recipe-backend/internal/auth"
	"github.com/tbourn/go-recipe-backend/internal/domain"
)

const userIDKey = "userID"

// Authenticator resolves a bearer token to an active user. A rejected token
// must yield an error matching auth.ErrInvalidToken; any other error is
// treated as a server failure.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// SetUserID stores the authenticated user id on the request context.
func SetUserID(c *gin.Context, id uint) { c.Set(userIDKey, id) }

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// RequireAuth rejects requests without a valid Authorization token with 401.
// Authenticator failures other than a rejected token answer 500.
// On success the user id is stored for handlers, rate limiting and logging.
func RequireAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := auth.TokenFromHeader(c.GetHeader("Authorization"))
		if tok == "" {
			unauthorized(c, "authentication credentials were not provided")
			return
		}
		u, err := authn.Authenticate(c.Request.Context(), tok)
		switch {
		case errors.Is(err, auth.ErrInvalidToken), err == nil && u == nil:
			unauthorized(c, "invalid or expired token")
			return
		case err != nil:
			LoggerFrom(c).Error().Err(err).Msg("authenticate")
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "internal_error",
				"message":    "internal server error",
			})
			return
		}
		SetUserID(c, u.ID)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
