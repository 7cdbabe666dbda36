package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/services"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// AuthHandler signs users in and out with cookie-backed sessions. Social
// sign-in lives in an external collaborator; it writes the same session rows.
type AuthHandler struct {
	users    *services.UserService
	sessions *iauth.SessionService
	secure   bool
}

// NewAuthHandler configures an auth handler. secure controls the cookie's
// Secure flag and should be true whenever the site is served over HTTPS.
func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService, secure bool) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, secure: secure}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=128"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

// Register creates a reader account and signs it in.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Create(requestContext(c), services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		response.Error(c, authError(err))
		return
	}

	session, err := h.sessions.Issue(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, session.SessionToken)
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// Login verifies credentials and issues a session cookie.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.VerifyCredentials(requestContext(c), req.Email, req.Password)
	if err != nil {
		// Wrong email and wrong password read the same.
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.sessions.Issue(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, session.SessionToken)
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// Logout deletes the current session and clears the cookie.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.CtxSessionTokenKey)
	if err := h.sessions.Logout(requestContext(c), token); err != nil {
		response.Error(c, err)
		return
	}

	h.clearSessionCookie(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, 30*24*60*60, "/", "", h.secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secure, true)
}

func authError(err error) error {
	if errors.Is(err, services.ErrUserEmailTaken) {
		return appErrors.ErrConflict
	}
	return err
}
