package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/app"
	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/handlers"
	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
	"github.com/casavia/casavia/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, cfg *app.Config, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	sessions, err := iauth.NewSessionService(db, iauth.WithSessionTTL(cfg.Sessions.TTL))
	if err != nil {
		return nil, err
	}
	tracker, err := iauth.NewSessionTracker(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	invitations, err := services.NewInvitationService(db, mailer,
		services.WithInvitationBaseURL(cfg.Server.BaseURL),
		services.WithInvitationExpiry(cfg.Invitations.Expiry),
	)
	if err != nil {
		return nil, err
	}
	posts, err := services.NewPostService(db)
	if err != nil {
		return nil, err
	}
	properties, err := services.NewPropertyService(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF())
	}
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit.MaxRequests, cfg.Server.RateLimit.Window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(users, sessions, cfg.Server.Secure)
	invitationHandler := handlers.NewInvitationHandler(invitations)
	sessionHandler := handlers.NewSessionHandler(sessions)
	profileHandler := handlers.NewProfileHandler(users)
	postHandler := handlers.NewPostHandler(posts)
	propertyHandler := handlers.NewPropertyHandler(properties, users)

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/invitations/accept", invitationHandler.Accept)
		public.GET("/posts", postHandler.ListPublished)
		public.GET("/posts/:slug", postHandler.GetBySlug)
		public.GET("/properties", propertyHandler.ListActive)
		public.GET("/properties/:slug", propertyHandler.GetBySlug)
	}

	requireAuth := middleware.SessionAuth(sessions, tracker)

	// Authenticated routes
	authed := r.Group("/api", requireAuth)
	{
		authed.POST("/auth/logout", authHandler.Logout)

		authed.GET("/profile", profileHandler.Me)
		authed.PATCH("/profile", profileHandler.Update)

		authed.GET("/sessions", sessionHandler.List)
		authed.DELETE("/sessions/:id", sessionHandler.Revoke)
		authed.POST("/sessions/revoke-others", sessionHandler.RevokeOthers)
	}

	// Contributor authoring: roles are double-checked in the services, the
	// gate here keeps readers out of the authoring surface entirely.
	canAuthor := middleware.RequireRole(models.RoleSupport, models.RoleAgent, models.RoleAgency, models.RoleAdmin)
	authoring := r.Group("/api", requireAuth, canAuthor)
	{
		authoring.GET("/posts/mine/list", postHandler.Mine)
		authoring.POST("/posts", postHandler.Create)
		authoring.PATCH("/posts/:id", postHandler.Update)
		authoring.POST("/posts/:id/publish", postHandler.Publish)
		authoring.DELETE("/posts/:id", postHandler.Delete)
	}

	canList := middleware.RequireRole(models.RoleAgent, models.RoleAgency, models.RoleAdmin)
	listings := r.Group("/api", requireAuth, canList)
	{
		listings.GET("/properties/mine/list", propertyHandler.Mine)
		listings.POST("/properties", propertyHandler.Create)
		listings.PATCH("/properties/:id", propertyHandler.Update)
		listings.DELETE("/properties/:id", propertyHandler.Delete)
	}

	// Admin invitation lifecycle
	admin := r.Group("/api/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.POST("/invitations", invitationHandler.Send)
		admin.POST("/invitations/resend", invitationHandler.Resend)
		admin.GET("/invitations/pending", invitationHandler.Pending)
		admin.GET("/invitations/accepted", invitationHandler.Accepted)
		admin.DELETE("/invitations/:id", invitationHandler.Revoke)
	}

	return r, nil
}
