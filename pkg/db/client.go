package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var errNoConnection = errors.New("database connection not initialized")

// Client wraps the shared GORM connection.
type Client struct {
	conn   *gorm.DB
	driver string
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New boots a GORM client. SQLite is used when the feature flag is set, Postgres otherwise.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Client, error) {
	driver, dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg.DB, driver)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "db_driver", driver), "database connection established")
	}
	return &Client{conn: conn, driver: driver}, nil
}

func dialectorFor(cfg *config.Config) (string, gorm.Dialector, error) {
	if cfg.FeatureFlags.UseSQLite || strings.EqualFold(cfg.DB.Driver, DriverSQLite) {
		path := strings.TrimSpace(cfg.FeatureFlags.SQLitePath)
		if path == "" {
			return "", nil, fmt.Errorf("sqlite path is required")
		}
		return DriverSQLite, sqlite.Open(path), nil
	}
	if cfg.DB.DSN == "" {
		return "", nil, fmt.Errorf("database DSN is required")
	}
	return DriverPostgres, postgres.New(postgres.Config{
		DSN:                  cfg.DB.DSN,
		PreferSimpleProtocol: true,
	}), nil
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig, driver string) {
	if driver == DriverSQLite {
		// a single writer avoids "database is locked" under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Driver names the active SQL dialect.
func (c *Client) Driver() string { return c.driver }

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB { return c.conn }

// SQL returns the pooled database/sql handle.
func (c *Client) SQL() (*sql.DB, error) {
	if c == nil || c.conn == nil {
		return nil, errNoConnection
	}
	return c.conn.DB()
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.SQL()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections. Closing a client that never
// connected is a no-op.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction that commits when fn returns nil. An error or
// panic from fn rolls it back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if c == nil || c.conn == nil {
		return errNoConnection
	}
	return c.conn.WithContext(ctx).Transaction(fn)
}
