package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

const (
	// SessionCookieName carries the opaque session token issued at sign-in.
	SessionCookieName = "casavia_session"

	CtxUserIDKey       = "userID"
	CtxUserRoleKey     = "userRole"
	CtxSessionIDKey    = "sessionID"
	CtxSessionTokenKey = "sessionToken"

	trackTimeout = 5 * time.Second
)

// SessionAuth resolves the session cookie into an authenticated identity and
// records device metadata in the background. Tracking never delays or fails
// the request.
func SessionAuth(sessions *iauth.SessionService, tracker *iauth.SessionTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		session, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			// Missing, foreign and expired sessions all read as unauthenticated.
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, session.UserID)
		c.Set(CtxSessionIDKey, session.ID)
		c.Set(CtxSessionTokenKey, session.SessionToken)
		if session.User != nil {
			c.Set(CtxUserRoleKey, session.User.Role)
		}

		if tracker != nil {
			userAgent := c.Request.UserAgent()
			clientIP := iauth.ClientIP(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
			go func() {
				// Detached from the request context so an early client
				// disconnect cannot cancel the write.
				ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
				defer cancel()
				tracker.Track(ctx, token, userAgent, clientIP)
			}()
		}

		c.Next()
	}
}

// RequireRole restricts a route to the listed roles. It assumes SessionAuth
// already ran on the group.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		value, ok := c.Get(CtxUserRoleKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		role, ok := value.(models.Role)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[role]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin restricts a route to administrators.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
