package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/db"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands only touch migration files.
var offline = map[string]func(options) error{
	"create":   createMigration,
	"validate": validateMigrations,
}

// online commands run against the configured database.
var online = map[string]func(context.Context, *sql.DB, string, options) error{
	"up":      gooseCommand("up"),
	"down":    gooseCommand("down"),
	"status":  gooseCommand("status"),
	"version": migrateToVersion,
}

func main() {
	cmd := flag.String("cmd", "up", "one of: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; empty uses the embedded set (create writes to "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	if err := run(*cmd, opts, logg); err != nil {
		logg.Error(context.Background(), "migrate "+*cmd+" failed", err)
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd string, opts options, logg *logger.Logger) error {
	if fn, ok := offline[cmd]; ok {
		return fn(opts)
	}
	fn, ok := online[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": cmd,
		"dir": opts.dir,
	})

	client, err := db.New(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	logg.Info(ctx, "running migrations")
	return fn(ctx, sqlDB, migrate.Dialect(client.Driver()), opts)
}

func gooseCommand(name string) func(context.Context, *sql.DB, string, options) error {
	return func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, name)
	}
}

func migrateToVersion(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
	if opts.version == "" {
		return errors.New("-version is required")
	}
	return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
}

func createMigration(opts options) error {
	if opts.name == "" {
		return errors.New("-name is required")
	}
	dir := opts.dir
	if dir == "" {
		dir = migrate.DefaultDir
	}
	path, err := migrate.CreateSQLMigration(dir, opts.name)
	if err != nil {
		return err
	}
	fmt.Println("created", path)
	return nil
}

func validateMigrations(opts options) error {
	var err error
	if opts.dir == "" {
		err = migrate.ValidateEmbedded()
	} else {
		err = migrate.ValidateDir(opts.dir)
	}
	if err != nil {
		return err
	}
	fmt.Println("migrations ok")
	return nil
}

func commandNames() []string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
