// User HTTP handlers: registration, token issuance and the caller's profile.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// UserHandler serves /user/.
type UserHandler struct {
	svc UserService
}

// NewUserHandler binds svc.
func NewUserHandler(svc UserService) *UserHandler { return &UserHandler{svc: svc} }

func userResponse(u *domain.User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name}
}

// Register godoc
// @ID          createUser
// @Summary     Register an account
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  services.RegisterInput  true  "Account"
// @Success     201  {object} handlers.UserResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed or email taken"
// @Router      /user/create/ [post]
func (h *UserHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !decodeJSON(c, &in) {
		return
	}
	u, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, userResponse(u))
}

// Token godoc
// @ID          createToken
// @Summary     Obtain a bearer token
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  services.CredentialsInput  true  "Credentials"
// @Success     200  {object} handlers.TokenResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid credentials"
// @Router      /user/token/ [post]
func (h *UserHandler) Token(c *gin.Context) {
	var in services.CredentialsInput
	if !decodeJSON(c, &in) {
		return
	}
	tok, err := h.svc.IssueToken(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, TokenResponse{Token: tok})
}

// Me godoc
// @ID          getMe
// @Summary     The caller's profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.UserResponse
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /user/me/ [get]
func (h *UserHandler) Me(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	u, err := h.svc.Me(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, userResponse(u))
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the caller's profile
// @Description PUT requires email, password and name; PATCH changes only the keys present.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  services.ProfileInput  true  "Fields"
// @Success     200  {object} handlers.UserResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed or email taken"
// @Router      /user/me/ [put]
// @Router      /user/me/ [patch]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	var in services.ProfileInput
	if !decodeJSON(c, &in) {
		return
	}
	if c.Request.Method == http.MethodPut {
		missing := map[string]string{}
		if in.Email == nil {
			missing["email"] = "is required"
		}
		if in.Password == nil {
			missing["password"] = "is required"
		}
		if in.Name == nil {
			missing["name"] = "is required"
		}
		if len(missing) > 0 {
			failValidation(c, missing)
			return
		}
	}
	u, err := h.svc.UpdateMe(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, userResponse(u))
}
