package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Google       GoogleConfig
	Business     BusinessConfig
	Retry        RetryConfig
	Sheets       SheetsConfig
	Cron         CronConfig
	Mail         MailConfig
	RateLimit    RateLimitConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"JOBREPORT_APP_ENV" required:"true"`
	Port         string `envconfig:"JOBREPORT_APP_PORT" default:"5001"`
	LogLevel     string `envconfig:"JOBREPORT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JOBREPORT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"JOBREPORT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"JOBREPORT_DB_DSN"`
	Driver string `envconfig:"JOBREPORT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"JOBREPORT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"JOBREPORT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"JOBREPORT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JOBREPORT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JOBREPORT_REDIS_URL"`
	Address      string        `envconfig:"JOBREPORT_REDIS_ADDR"`
	Password     string        `envconfig:"JOBREPORT_REDIS_PASSWORD"`
	DB           int           `envconfig:"JOBREPORT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JOBREPORT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JOBREPORT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JOBREPORT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JOBREPORT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JOBREPORT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite     bool   `envconfig:"JOBREPORT_USE_SQLITE" default:"false"`
	SQLitePath    string `envconfig:"JOBREPORT_SQLITE_PATH" default:"jobreport.db"`
	AutoMigrate   bool   `envconfig:"JOBREPORT_AUTO_MIGRATE" default:"false"`
	LedgerBackend string `envconfig:"JOBREPORT_LEDGER_BACKEND" default:"sheets"`
	RowIndex      bool   `envconfig:"JOBREPORT_ROW_INDEX" default:"false"`
}

// UseMemoryLedger reports whether the in-process tabular backend is selected.
func (f FeatureFlagsConfig) UseMemoryLedger() bool {
	return strings.EqualFold(strings.TrimSpace(f.LedgerBackend), LedgerBackendMemory)
}

type GoogleConfig struct {
	CredentialsJSON        string `envconfig:"JOBREPORT_GOOGLE_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"JOBREPORT_GOOGLE_APPLICATION_CREDENTIALS"`
	CalendarID             string `envconfig:"JOBREPORT_CALENDAR_ID"`
	SpreadsheetID          string `envconfig:"JOBREPORT_SPREADSHEET_ID"`
}

type BusinessConfig struct {
	Timezone       string `envconfig:"JOBREPORT_BUSINESS_TIMEZONE" default:"America/Los_Angeles"`
	BaseURL        string `envconfig:"JOBREPORT_BASE_URL" default:"http://localhost:5001"`
	SourceColorMap string `envconfig:"JOBREPORT_SOURCE_COLOR_MAP" default:"6:Yelp,2:Google LSA"`
}

// Location resolves the business timezone.
func (b BusinessConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading business timezone %q: %w", name, err)
	}
	return loc, nil
}

// ColorSources parses the "id:Source,id:Source" color map.
func (b BusinessConfig) ColorSources() map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(b.SourceColorMap, ",") {
		id, source, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		source = strings.TrimSpace(source)
		if id == "" || source == "" {
			continue
		}
		out[id] = source
	}
	return out
}

type RetryConfig struct {
	Attempts int           `envconfig:"JOBREPORT_RETRY_ATTEMPTS" default:"3"`
	Delay    time.Duration `envconfig:"JOBREPORT_RETRY_DELAY" default:"2s"`
}

type SheetsConfig struct {
	RequestsPerMinute int `envconfig:"JOBREPORT_SHEETS_REQUESTS_PER_MINUTE" default:"60"`
	Burst             int `envconfig:"JOBREPORT_SHEETS_BURST" default:"10"`
}

type CronConfig struct {
	ReconcileAt string        `envconfig:"JOBREPORT_CRON_RECONCILE_AT" default:"09:00"`
	ReminderAt  string        `envconfig:"JOBREPORT_CRON_REMINDER_AT" default:"17:00"`
	CleanupAt   string        `envconfig:"JOBREPORT_CRON_CLEANUP_AT" default:"03:30"`
	LockTTL     time.Duration `envconfig:"JOBREPORT_CRON_LOCK_TTL" default:"1h"`
	Embedded    bool          `envconfig:"JOBREPORT_CRON_EMBEDDED" default:"true"`

	NotificationRetentionDays int `envconfig:"JOBREPORT_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type MailConfig struct {
	Driver string `envconfig:"JOBREPORT_MAIL_DRIVER" default:"smtp"`
	From   string `envconfig:"JOBREPORT_MAIL_FROM"`
	To     string `envconfig:"JOBREPORT_MAIL_TO"`

	SMTPHost     string `envconfig:"JOBREPORT_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"JOBREPORT_SMTP_PORT" default:"465"`
	SMTPUsername string `envconfig:"JOBREPORT_SMTP_USERNAME"`
	SMTPPassword string `envconfig:"JOBREPORT_SMTP_PASSWORD"`

	WebhookURL    string        `envconfig:"JOBREPORT_MAIL_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"JOBREPORT_MAIL_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"JOBREPORT_MAIL_TIMEOUT" default:"15s"`
}

// Recipient returns the reminder recipient, defaulting to the sender.
func (m MailConfig) Recipient() string {
	if to := strings.TrimSpace(m.To); to != "" {
		return to
	}
	return strings.TrimSpace(m.From)
}

type RateLimitConfig struct {
	SubmitWindow time.Duration `envconfig:"JOBREPORT_RATE_LIMIT_SUBMIT_WINDOW" default:"1m"`
	SubmitLimit  int           `envconfig:"JOBREPORT_RATE_LIMIT_SUBMIT_LIMIT" default:"30"`
}

type HTTPConfig struct {
	AdminToken   string        `envconfig:"JOBREPORT_ADMIN_TOKEN"`
	CORSOrigins  []string      `envconfig:"JOBREPORT_CORS_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout  time.Duration `envconfig:"JOBREPORT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"JOBREPORT_HTTP_WRITE_TIMEOUT" default:"60s"`
}

func (c *Config) validate() error {
	if _, err := c.Business.Location(); err != nil {
		return err
	}
	if !c.FeatureFlags.UseMemoryLedger() && strings.TrimSpace(c.Google.SpreadsheetID) == "" {
		return fmt.Errorf("%s is required unless %s=%s", EnvSpreadsheetID, EnvLedgerBackend, LedgerBackendMemory)
	}
	if strings.TrimSpace(c.Google.CalendarID) == "" {
		return fmt.Errorf("%s is required", EnvCalendarID)
	}
	if c.Redis.URL == "" && c.Redis.Address == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	if !c.FeatureFlags.UseSQLite && c.DB.DSN == "" {
		return fmt.Errorf("%s is required unless %s=true", EnvDBDSN, EnvUseSQLite)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvRetryAttempts)
	}
	return nil
}
