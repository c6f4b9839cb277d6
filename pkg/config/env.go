package config

const (
	EnvPrefix = "JOBREPORT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LedgerBackendSheets = "sheets"
	LedgerBackendMemory = "memory"

	DefaultTimezone = "America/Los_Angeles"
)

const (
	EnvAppEnv        = "JOBREPORT_APP_ENV"
	EnvPort          = "JOBREPORT_APP_PORT"
	EnvDBDSN         = "JOBREPORT_DB_DSN"
	EnvUseSQLite     = "JOBREPORT_USE_SQLITE"
	EnvRedisURL      = "JOBREPORT_REDIS_URL"
	EnvRedisAddr     = "JOBREPORT_REDIS_ADDR"
	EnvCalendarID    = "JOBREPORT_CALENDAR_ID"
	EnvSpreadsheetID = "JOBREPORT_SPREADSHEET_ID"
	EnvLedgerBackend = "JOBREPORT_LEDGER_BACKEND"
	EnvTimezone      = "JOBREPORT_BUSINESS_TIMEZONE"
	EnvColorMap      = "JOBREPORT_SOURCE_COLOR_MAP"
	EnvRetryAttempts = "JOBREPORT_RETRY_ATTEMPTS"
	EnvRetryDelay    = "JOBREPORT_RETRY_DELAY"
	EnvReconcileAt   = "JOBREPORT_CRON_RECONCILE_AT"
	EnvMailDriver    = "JOBREPORT_MAIL_DRIVER"
)
