package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9_]+`)

const sqlSkeleton = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: write portable SQL; it runs on postgres and sqlite3.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- %[1]s: undo the Up section.
-- +goose StatementEnd
`

// migrationName lowercases name and collapses anything outside [a-z0-9_] into underscores.
func migrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = unsafeNameChars.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// CreateSQLMigration writes an empty goose migration named <version>_<name>.sql
// into dir and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigrationAt(dir, name, time.Now().UTC())
}

func createSQLMigrationAt(dir, name string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("migration dir is required")
	}
	safe := migrationName(name)
	if safe == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migration dir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.Format(versionLayout), safe))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("migration already exists: %s", path)
		}
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, sqlSkeleton, safe); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
