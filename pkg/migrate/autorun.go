package migrate

import (
	"context"
	"fmt"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/db"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

// MaybeRun applies the embedded migrations at startup when JOBREPORT_AUTO_MIGRATE is set
// in dev, or always for a local SQLite database.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlite := client.Driver() == db.DriverSQLite
	if !cfg.FeatureFlags.AutoMigrate && !sqlite {
		return nil
	}
	if !cfg.App.IsDev() && !sqlite {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "db_driver": client.Driver()})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, Dialect(client.Driver()), "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
