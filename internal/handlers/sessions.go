package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/models"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// SessionHandler lets users review and revoke their own sessions.
type SessionHandler struct {
	sessions *iauth.SessionService
}

// NewSessionHandler configures a session handler.
func NewSessionHandler(sessions *iauth.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionDTO struct {
	ID         string    `json:"id"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
	Current    bool      `json:"current"`
}

func toSessionDTO(session *models.Session, currentToken string) sessionDTO {
	return sessionDTO{
		ID:         session.ID,
		Browser:    session.Browser,
		OS:         session.OS,
		DeviceType: session.DeviceType,
		IPAddress:  session.IPAddress,
		LastActive: session.LastActive,
		CreatedAt:  session.CreatedAt,
		Current:    session.SessionToken == currentToken,
	}
}

// List returns the caller's sessions with the current one flagged.
// GET /api/sessions
func (h *SessionHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	currentToken := c.GetString(middleware.CtxSessionTokenKey)

	sessions, err := h.sessions.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]sessionDTO, 0, len(sessions))
	for i := range sessions {
		dtos = append(dtos, toSessionDTO(&sessions[i], currentToken))
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": dtos})
}

// Revoke deletes one of the caller's other sessions.
// DELETE /api/sessions/:id
func (h *SessionHandler) Revoke(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	currentToken := c.GetString(middleware.CtxSessionTokenKey)

	err := h.sessions.Revoke(requestContext(c), c.Param("id"), userID, currentToken)
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// RevokeOthers signs out every device except the calling one.
// POST /api/sessions/revoke-others
func (h *SessionHandler) RevokeOthers(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	currentToken := c.GetString(middleware.CtxSessionTokenKey)

	revoked, err := h.sessions.RevokeOthers(requestContext(c), userID, currentToken)
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": revoked})
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, iauth.ErrSessionNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, iauth.ErrCurrentSession):
		return appErrors.NewInvalidOperation("cannot revoke the current session")
	default:
		return err
	}
}
