package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/casavia/casavia/internal/auth"
	"github.com/casavia/casavia/internal/database/testutil"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sessions, err := iauth.NewSessionService(db, iauth.WithSessionClock(func() time.Time { return now }))
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, nil,
		services.WithInvitationClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	user := &models.User{Email: "user@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(user).Error)

	require.NoError(t, db.Create(&models.Session{
		UserID:       user.ID,
		SessionToken: "tok-live",
		Expires:      now.Add(time.Hour),
		LastActive:   now,
	}).Error)
	require.NoError(t, db.Create(&models.Session{
		UserID:       user.ID,
		SessionToken: "tok-dead",
		Expires:      now.Add(-time.Hour),
		LastActive:   now.Add(-2 * time.Hour),
	}).Error)

	longAgo := now.Add(-120 * 24 * time.Hour)
	require.NoError(t, db.Create(&models.Invitation{
		Email:     "stale@example.com",
		Token:     "tok-stale",
		InvitedBy: user.ID,
		ExpiresAt: longAgo,
	}).Error)
	require.NoError(t, db.Create(&models.Invitation{
		Email:     "open@example.com",
		Token:     "tok-open",
		InvitedBy: user.ID,
		ExpiresAt: now.Add(time.Hour),
	}).Error)

	cleaner := NewCleaner(sessions, invitations, WithInvitationRetentionDays(90))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.EqualValues(t, 1, sessionCount)

	var invitationCount int64
	require.NoError(t, db.Model(&models.Invitation{}).Count(&invitationCount).Error)
	require.EqualValues(t, 1, invitationCount)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	sessions, err := iauth.NewSessionService(db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, invitations,
		WithSessionSchedule("@every 1h"),
		WithInvitationSchedule("@every 24h"),
	)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerShutdownRunsFinalCleanup(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sessions, err := iauth.NewSessionService(db, iauth.WithSessionClock(func() time.Time { return now }))
	require.NoError(t, err)

	user := &models.User{Email: "user@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.Session{
		UserID:       user.ID,
		SessionToken: "tok-dead",
		Expires:      now.Add(-time.Hour),
		LastActive:   now.Add(-2 * time.Hour),
	}).Error)

	cleaner := NewCleaner(sessions, nil, WithSessionSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	// The final pass must survive the scheduler's drain context expiring.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cleaner.Shutdown(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Where("expires < ?", now).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerWithNoJobs(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
