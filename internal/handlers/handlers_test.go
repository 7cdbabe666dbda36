package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/database/testutil"
	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
	"github.com/casavia/casavia/pkg/mail"
)

type fixture struct {
	db       *gorm.DB
	router   *gin.Engine
	sessions *iauth.SessionService
	mailer   *captureMailer
}

type captureMailer struct {
	messages []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	mailer := &captureMailer{}

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, mailer, services.WithInvitationBaseURL("https://casavia.test"))
	require.NoError(t, err)
	posts, err := services.NewPostService(db)
	require.NoError(t, err)
	properties, err := services.NewPropertyService(db)
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db)
	require.NoError(t, err)

	authHandler := NewAuthHandler(users, sessions, false)
	inviteHandler := NewInvitationHandler(invitations)
	sessionHandler := NewSessionHandler(sessions)
	profileHandler := NewProfileHandler(users)
	postHandler := NewPostHandler(posts)
	propertyHandler := NewPropertyHandler(properties, users)

	r := gin.New()
	r.GET("/health", Health(db))
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/invitations/accept", inviteHandler.Accept)
	r.GET("/api/posts", postHandler.ListPublished)
	r.GET("/api/posts/:slug", postHandler.GetBySlug)
	r.GET("/api/properties", propertyHandler.ListActive)

	authed := r.Group("/api", middleware.SessionAuth(sessions, nil))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/profile", profileHandler.Me)
	authed.PATCH("/profile", profileHandler.Update)
	authed.GET("/sessions", sessionHandler.List)
	authed.DELETE("/sessions/:id", sessionHandler.Revoke)
	authed.POST("/sessions/revoke-others", sessionHandler.RevokeOthers)
	authed.POST("/posts", postHandler.Create)
	authed.POST("/posts/:id/publish", postHandler.Publish)
	authed.POST("/properties", propertyHandler.Create)

	admin := r.Group("/api/admin", middleware.SessionAuth(sessions, nil), middleware.RequireAdmin())
	admin.POST("/invitations", inviteHandler.Send)
	admin.POST("/invitations/resend", inviteHandler.Resend)
	admin.GET("/invitations/pending", inviteHandler.Pending)
	admin.GET("/invitations/accepted", inviteHandler.Accepted)
	admin.DELETE("/invitations/:id", inviteHandler.Revoke)

	return &fixture{db: db, router: r, sessions: sessions, mailer: mailer}
}

func (f *fixture) seedUser(t *testing.T, email string, role models.Role) (*models.User, string) {
	t.Helper()
	user := &models.User{Email: email, Role: role}
	require.NoError(t, f.db.Create(user).Error)
	session, err := f.sessions.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	return user, session.SessionToken
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "reader@example.com",
		"password": "hunter2hunter2",
		"name":     "Reader",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, w.Result().Cookies())

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "reader@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "reader@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvitationAdminFlow(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.seedUser(t, "admin@example.com", models.RoleAdmin)
	invitee, _ := f.seedUser(t, "invitee@example.com", models.RoleUser)

	// Only admins may send.
	_, userToken := f.seedUser(t, "reader@example.com", models.RoleUser)
	w := f.do(t, http.MethodPost, "/api/admin/invitations", userToken, gin.H{"email": invitee.Email})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/invitations", adminToken, gin.H{"email": invitee.Email})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.mailer.messages, 1)

	// Sending again conflicts while pending.
	w = f.do(t, http.MethodPost, "/api/admin/invitations", adminToken, gin.H{"email": invitee.Email})
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/invitations/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decodeData(t, w)["invitations"].([]any)
	require.Len(t, pending, 1)

	// Redeem with the stored token.
	var stored models.Invitation
	require.NoError(t, f.db.Where("email = ?", invitee.Email).First(&stored).Error)

	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{"token": stored.Token})
	require.Equal(t, http.StatusOK, w.Code)

	var promoted models.User
	require.NoError(t, f.db.First(&promoted, "id = ?", invitee.ID).Error)
	require.Equal(t, models.RoleSupport, promoted.Role)

	// Token rejections after redemption are indistinct from unknown tokens.
	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{"token": stored.Token})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVITE_INVALID_OR_EXPIRED")

	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{"token": "never-issued"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVITE_INVALID_OR_EXPIRED")

	// Revoking the accepted invitation demotes and notifies.
	w = f.do(t, http.MethodDelete, "/api/admin/invitations/"+stored.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, f.db.First(&promoted, "id = ?", invitee.ID).Error)
	require.Equal(t, models.RoleUser, promoted.Role)
	require.Len(t, f.mailer.messages, 2)
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)
	user, token := f.seedUser(t, "user@example.com", models.RoleUser)

	laptop, err := f.sessions.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	phone, err := f.sessions.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/sessions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decodeData(t, w)["sessions"].([]any)
	require.Len(t, sessions, 3)

	currentCount := 0
	var currentID string
	for _, raw := range sessions {
		entry := raw.(map[string]any)
		if entry["current"].(bool) {
			currentCount++
			currentID = entry["id"].(string)
		}
	}
	require.Equal(t, 1, currentCount)

	// The current session refuses revocation.
	w = f.do(t, http.MethodDelete, "/api/sessions/"+currentID, token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Another device can be revoked.
	w = f.do(t, http.MethodDelete, "/api/sessions/"+laptop.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// A stranger cannot revoke what they do not own.
	_, strangerToken := f.seedUser(t, "stranger@example.com", models.RoleUser)
	w = f.do(t, http.MethodDelete, "/api/sessions/"+phone.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Revoke-others clears the rest.
	w = f.do(t, http.MethodPost, "/api/sessions/revoke-others", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decodeData(t, w)["revoked"])
}

func TestLogoutInvalidatesCookie(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "user@example.com", models.RoleUser)

	w := f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileUpdate(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "agent@example.com", models.RoleAgent)

	w := f.do(t, http.MethodPatch, "/api/profile", token, gin.H{
		"name":        "Nora Vidal",
		"phone":       "+351 912 345 678",
		"agency_name": "Vidal Estates",
	})
	require.Equal(t, http.StatusOK, w.Code)

	user := decodeData(t, w)["user"].(map[string]any)
	require.Equal(t, "Nora Vidal", user["name"])
	require.Equal(t, "+351 912 345 678", user["phone"])
	require.Equal(t, "Vidal Estates", user["agency_name"])

	w = f.do(t, http.MethodPatch, "/api/profile", token, gin.H{"phone": "call me"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlogPublishFlow(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "writer@example.com", models.RoleSupport)

	w := f.do(t, http.MethodPost, "/api/posts", token, gin.H{
		"title": "Moving to Lisbon",
		"body":  "Everything about the neighbourhoods.",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	post := decodeData(t, w)["post"].(map[string]any)
	postID := post["id"].(string)
	slug := post["slug"].(string)

	// Drafts stay invisible.
	w = f.do(t, http.MethodGet, "/api/posts/"+slug, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/posts/"+postID+"/publish", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/posts/"+slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Moving to Lisbon")
}

func TestPropertyCreationRequiresListingRole(t *testing.T) {
	f := newFixture(t)
	_, readerToken := f.seedUser(t, "reader@example.com", models.RoleUser)
	_, agentToken := f.seedUser(t, "agent@example.com", models.RoleAgent)

	listing := gin.H{
		"title":   "Sunny flat near the river",
		"price":   420000,
		"city":    "Porto",
		"country": "PT",
	}

	w := f.do(t, http.MethodPost, "/api/properties", readerToken, listing)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/properties", agentToken, listing)
	require.Equal(t, http.StatusCreated, w.Code)

	// Draft listings stay out of the public catalogue.
	w = f.do(t, http.MethodGet, "/api/properties", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "Sunny flat")
}

func TestResendPushesExpiryForward(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.seedUser(t, "admin@example.com", models.RoleAdmin)
	f.seedUser(t, "invitee@example.com", models.RoleUser)

	w := f.do(t, http.MethodPost, "/api/admin/invitations", adminToken, gin.H{"email": "invitee@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var before models.Invitation
	require.NoError(t, f.db.Where("email = ?", "invitee@example.com").First(&before).Error)

	time.Sleep(10 * time.Millisecond)
	w = f.do(t, http.MethodPost, "/api/admin/invitations/resend", adminToken, gin.H{"email": "invitee@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	var after models.Invitation
	require.NoError(t, f.db.Where("email = ?", "invitee@example.com").First(&after).Error)
	require.Equal(t, before.Token, after.Token)
	require.True(t, after.ExpiresAt.After(before.ExpiresAt))
	require.Len(t, f.mailer.messages, 2)
}
