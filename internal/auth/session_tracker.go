package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/logger"
	"github.com/casavia/casavia/pkg/metrics"
)

const defaultDeviceType = "desktop"

// SessionTracker attaches device and network metadata to session rows and
// refreshes their activity timestamp. Tracking is advisory telemetry: every
// failure is logged and swallowed so the request path is never affected.
type SessionTracker struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// TrackerOption customises SessionTracker behaviour.
type TrackerOption func(*SessionTracker)

// WithTrackerClock injects a custom clock primarily for testing.
func WithTrackerClock(clock func() time.Time) TrackerOption {
	return func(t *SessionTracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// NewSessionTracker constructs a SessionTracker.
func NewSessionTracker(db *gorm.DB, opts ...TrackerOption) (*SessionTracker, error) {
	if db == nil {
		return nil, errors.New("session tracker: db is required")
	}

	tracker := &SessionTracker{
		db:  db,
		now: time.Now,
		log: logger.WithModule("sessions"),
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// Track records device/network context for the session identified by the
// token. Metadata fields are written once (first writer wins); last_active is
// refreshed on every call. A missing session is a no-op, not an error.
func (t *SessionTracker) Track(ctx context.Context, sessionToken, userAgentString, clientIP string) {
	if strings.TrimSpace(sessionToken) == "" {
		return
	}

	var session models.Session
	err := t.db.WithContext(ctx).Where("session_token = ?", sessionToken).First(&session).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			t.fail("session lookup failed", err)
		}
		return
	}

	updates := map[string]any{"last_active": t.now()}

	if session.UserAgent == "" || session.IPAddress == "" {
		ua := useragent.Parse(userAgentString)

		deviceType := defaultDeviceType
		switch {
		case ua.Mobile:
			deviceType = "mobile"
		case ua.Tablet:
			deviceType = "tablet"
		case ua.Bot:
			deviceType = "bot"
		}

		updates["user_agent"] = userAgentString
		updates["ip_address"] = clientIP
		updates["browser"] = ua.Name
		updates["os"] = ua.OS
		updates["device_type"] = deviceType
	}

	if err := t.db.WithContext(ctx).Model(&session).Updates(updates).Error; err != nil {
		t.fail("session update failed", err)
	}
}

func (t *SessionTracker) fail(msg string, err error) {
	metrics.SessionTrackingFailures.Inc()
	t.log.Warn(msg, zap.Error(err))
}

// ClientIP extracts the originating client address: the first entry of the
// forwarded-for header when present, else the remote address host, else a
// loopback placeholder. Best effort; never fails.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}

	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}

	return "127.0.0.1"
}
