package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationFile = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

var requiredAnnotations = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir checks the migrations in a directory on disk.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("migration dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(embedded, embeddedDir)
}

// ValidateFS reports every misnamed file, duplicated version and missing goose
// annotation under dir, not just the first.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := migrationFile.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("migration %q: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, ok := versions[match[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("migration version %s used by %q and %q", match[1], prev, name))
			continue
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read migration %q: %w", name, err))
			continue
		}
		for _, annotation := range requiredAnnotations {
			if !strings.Contains(string(body), annotation) {
				errs = multierr.Append(errs, fmt.Errorf("migration %q missing %q", name, annotation))
			}
		}
	}
	return errs
}
