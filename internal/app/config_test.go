package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "https://casavia.example.com", cfg.Server.BaseURL)
	require.True(t, cfg.Server.Secure)
	require.True(t, cfg.Server.CSRF.Enabled)
	require.Equal(t, 50, cfg.Server.RateLimit.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "/internal/metrics", cfg.Monitoring.Prometheus.Endpoint)

	require.Equal(t, 360*time.Hour, cfg.Sessions.TTL)
	require.Equal(t, 72*time.Hour, cfg.Invitations.Expiry)

	require.Equal(t, "@every 30m", cfg.Maintenance.SessionSchedule)
	require.Equal(t, "@midnight", cfg.Maintenance.InvitationSchedule)
	require.Equal(t, 30, cfg.Maintenance.RetentionDays)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 720*time.Hour, cfg.Sessions.TTL)
	require.Equal(t, 168*time.Hour, cfg.Invitations.Expiry)
	require.Equal(t, "@hourly", cfg.Maintenance.SessionSchedule)
	require.Equal(t, 90, cfg.Maintenance.RetentionDays)
	require.False(t, cfg.Email.SMTP.Enabled)
}

func TestDatabaseSettingsAdapter(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "sqlite",
		Path:   "./data/app.sqlite",
		Postgres: DBAuthConfig{
			Enabled:  true,
			Host:     "db.internal",
			Port:     5432,
			Database: "casavia",
			Username: "svc",
			Password: "pw",
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, "casavia", settings.Name)
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)
}
