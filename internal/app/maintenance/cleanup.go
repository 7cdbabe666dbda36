package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/services"
	"github.com/casavia/casavia/pkg/logger"
)

const (
	defaultInvitationRetentionDays = 90
	defaultSessionSpec             = "@hourly"
	defaultInvitationSpec          = "@daily"
)

// Cleaner coordinates background maintenance: purging expired sessions and
// removing invitations that have been dead past the retention window.
type Cleaner struct {
	sessions    *iauth.SessionService
	invitations *services.InvitationService
	cron        *cron.Cron
	log         *zap.Logger
	retention   int

	sessionSchedule    string
	invitationSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithInvitationRetentionDays adjusts how long dead invitations are retained.
func WithInvitationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithInvitationSchedule overrides the cron specification for invitation cleanup.
func WithInvitationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.invitationSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, invitations *services.InvitationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:           sessions,
		invitations:        invitations,
		retention:          defaultInvitationRetentionDays,
		sessionSchedule:    defaultSessionSpec,
		invitationSchedule: defaultInvitationSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.invitations == nil {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.PurgeExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.invitations != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.invitationSchedule, func() {
			if _, err := c.invitations.PurgeDead(context.Background(), c.retentionWindow()); err != nil {
				c.log.Warn("invitation cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once any
// in-flight jobs have completed; it is a drain signal only and must not be
// used for further work.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Shutdown stops the scheduler, waits for in-flight jobs to drain and then
// performs one final cleanup pass bounded by the provided context.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.RunOnce(ctx)
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.invitations != nil && c.retention > 0 {
		if _, err := c.invitations.PurgeDead(ctx, c.retentionWindow()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) retentionWindow() time.Duration {
	return time.Duration(c.retention) * 24 * time.Hour
}
