package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/movingops/jobreport-backend/pkg/db/models"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))

	data, err := os.ReadFile(filepath.Join("migrations", "20260201090000_create_notification_log.sql"))
	require.NoError(t, err)
	content := string(data)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS notification_log",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_notification_log_date_kind ON notification_log (date, kind)",
		"DROP TABLE IF EXISTS notification_log",
	} {
		assert.Contains(t, content, want)
	}
}

func TestRunAppliesEmbeddedMigrationsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	ctx := context.Background()

	require.NoError(t, Run(ctx, sqlDB, Dialect("sqlite"), "", "up"))

	entry := &models.NotificationLog{
		Date:      "2026-02-10",
		Kind:      enums.NotificationKindDailyReminder,
		Recipient: "ops@example.com",
		Subject:   "ACTION REQUIRED: Daily Job Report - 2 Jobs",
		JobCount:  2,
		SentAt:    time.Date(2026, 2, 11, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(entry).Error)

	dup := *entry
	dup.ID = uuid.Nil
	assert.Error(t, conn.Create(&dup).Error, "date+kind must be unique")

	var stored models.NotificationLog
	require.NoError(t, conn.Where("date = ?", "2026-02-10").Take(&stored).Error)
	assert.Equal(t, 2, stored.JobCount)
	assert.True(t, stored.SentAt.Equal(entry.SentAt))

	require.NoError(t, MigrateToVersion(ctx, sqlDB, Dialect("sqlite"), "", "0"))
	assert.False(t, conn.Migrator().HasTable("notification_log"))
}

func TestCreateSQLMigrationProducesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Reminder Channel!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_reminder_channel.sql"))
	require.NoError(t, ValidateDir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- nothing"), 0o644))
	assert.Error(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := createSQLMigrationAt(dir, "reminder channel", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301120000_reminder_channel.sql"), path)

	_, err = createSQLMigrationAt(dir, "reminder channel", at)
	assert.ErrorContains(t, err, "already exists")

	_, err = createSQLMigrationAt(dir, "!!!", at)
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), []byte("-- +goose Up\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad Name.sql"), []byte(""), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	assert.NoError(t, ValidateEmbedded())
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite3", Dialect("sqlite"))
	assert.Equal(t, "postgres", Dialect("postgres"))
	assert.Equal(t, "postgres", Dialect(""))
}
