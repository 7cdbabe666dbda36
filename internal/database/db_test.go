package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casavia/casavia/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{DSN: "file:opentest?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasTable(&models.Invitation{}))
	require.True(t, db.Migrator().HasTable(&models.Session{}))
	require.True(t, db.Migrator().HasTable(&models.Property{}))
}

func TestAutoMigrateEnforcesInvitationEmailUniqueness(t *testing.T) {
	db, err := Open(Config{DSN: "file:uniqtest?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	first := models.Invitation{Email: "dup@example.com", Token: "tok-a"}
	require.NoError(t, db.Create(&first).Error)

	second := models.Invitation{Email: "dup@example.com", Token: "tok-b"}
	require.Error(t, db.Create(&second).Error)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "casavia", Name: "casavia", Host: "db", Port: 5433, Password: "s3cret"})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "sslmode=disable")

	_, err = buildPostgresDSN(Config{Host: "db"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "casavia", Password: "pw", Name: "casavia"})
	require.NoError(t, err)
	require.Contains(t, dsn, "casavia:pw@tcp(127.0.0.1:3306)/casavia")
	require.Contains(t, dsn, "parseTime=True")

	_, err = buildMySQLDSN(Config{User: "casavia"})
	require.Error(t, err)
}
