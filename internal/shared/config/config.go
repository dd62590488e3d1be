package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Plaid       PlaidConfig
	Supabase    SupabaseConfig
	RevenueCat  RevenueCatConfig
	Encryption  EncryptionConfig
	Scheduler   SchedulerConfig
	Sync        SyncConfig
	TLS         TLSConfig
	Firebase    FirebaseConfig
	Embeddings  EmbeddingsConfig
	Admin       AdminConfig
	Apple       AppleConfig
	Telemetry   TelemetryConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	URL         string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type PlaidConfig struct {
	ClientID           string
	Secret             string
	Env                string
	ClientName         string
	Products           []string
	CountryCodes       []string
	RedirectURI        string
	AndroidPackageName string
	WebhookURL         string
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	JWTSecret      string
}

type RevenueCatConfig struct {
	WebhookSecret   string
	SkipStaleEvents bool
}

type EncryptionConfig struct {
	Key string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type SyncConfig struct {
	Timeout         time.Duration
	TransactionDays int
	MaxPages        int
	OnLink          bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	MessagesFile    string
}

type EmbeddingsConfig struct {
	URL    string
	Model  string
	APIKey string
}

type AdminConfig struct {
	EmailAllowlist []string
	// CronSecret lets schedulers call the sync and embedding triggers
	// without an admin session.
	CronSecret string
}

type AppleConfig struct {
	AppIDs []string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	// Pool defaults suit Supabase's session pooler, which allows few
	// connections per role.
	dbMaxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "10"))
	if err != nil || dbMaxOpen < 1 {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: must be a positive integer")
	}
	dbMaxIdle, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil || dbMaxIdle < 0 {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: must be a non-negative integer")
	}
	if dbMaxIdle > dbMaxOpen {
		dbMaxIdle = dbMaxOpen
	}
	dbConnLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	dbConnIdleTime, err := time.ParseDuration(getEnv("DB_CONN_MAX_IDLE_TIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	// Parse scheduler configuration
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", false)
	schedulerTimes := strings.Split(getEnv("SCHEDULER_TIMES", "06:00,18:00"), ",")
	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}
	schedulerRunOnStartup := getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false)

	// Parse sync configuration
	syncTimeout, err := time.ParseDuration(getEnv("SYNC_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TIMEOUT: %w", err)
	}
	syncDays, err := strconv.Atoi(getEnv("SYNC_TRANSACTION_DAYS", "180"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TRANSACTION_DAYS: %w", err)
	}
	syncMaxPages, err := strconv.Atoi(getEnv("SYNC_MAX_PAGES", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_MAX_PAGES: %w", err)
	}

	// Parse TLS configuration
	tlsEnabled := getBoolEnv("TLS_ENABLED", false)
	tlsCertPath := getEnv("TLS_CERT_PATH", "")
	tlsKeyPath := getEnv("TLS_KEY_PATH", "")
	tlsRedirectHTTP := getBoolEnv("TLS_REDIRECT_HTTP", false)

	environment := getEnv("APP_ENV", "development")
	logFormat := "console"
	if environment == "production" {
		logFormat = "json"
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS", ""),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "keepmore"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", false),

			MaxOpenConns:    dbMaxOpen,
			MaxIdleConns:    dbMaxIdle,
			ConnMaxLifetime: dbConnLifetime,
			ConnMaxIdleTime: dbConnIdleTime,
		},
		Plaid: PlaidConfig{
			ClientID:           getEnv("PLAID_CLIENT_ID", ""),
			Secret:             getEnv("PLAID_SECRET", ""),
			Env:                getEnv("PLAID_ENV", "sandbox"),
			ClientName:         getEnv("PLAID_CLIENT_NAME", "KeepMore"),
			Products:           getListEnv("PLAID_PRODUCTS", "transactions"),
			CountryCodes:       getListEnv("PLAID_COUNTRY_CODES", "US,CA"),
			RedirectURI:        getEnv("PLAID_REDIRECT_URI", ""),
			AndroidPackageName: getEnv("PLAID_ANDROID_PACKAGE_NAME", ""),
			WebhookURL:         getEnv("PLAID_WEBHOOK_URL", ""),
		},
		Supabase: SupabaseConfig{
			URL:            getEnv("SUPABASE_URL", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		},
		RevenueCat: RevenueCatConfig{
			WebhookSecret:   getEnv("REVENUECAT_WEBHOOK_SECRET", ""),
			SkipStaleEvents: getBoolEnv("REVENUECAT_SKIP_STALE_EVENTS", false),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       schedulerEnabled,
			ScheduleTimes: schedulerTimes,
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  schedulerRunOnStartup,
		},
		Sync: SyncConfig{
			Timeout:         syncTimeout,
			TransactionDays: syncDays,
			MaxPages:        syncMaxPages,
			OnLink:          getBoolEnv("SYNC_ON_LINK", true),
		},
		TLS: TLSConfig{
			Enabled:      tlsEnabled,
			CertPath:     tlsCertPath,
			KeyPath:      tlsKeyPath,
			RedirectHTTP: tlsRedirectHTTP,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("MESSAGES_FILE", ""),
		},
		Embeddings: EmbeddingsConfig{
			URL:    getEnv("EMBEDDINGS_URL", ""),
			Model:  getEnv("EMBEDDINGS_MODEL", "all-MiniLM-L6-v2"),
			APIKey: getEnv("EMBEDDINGS_API_KEY", ""),
		},
		Admin: AdminConfig{
			EmailAllowlist: getListEnv("ADMIN_EMAIL_ALLOWLIST", ""),
			CronSecret:     getEnv("CRON_SECRET", ""),
		},
		Apple: AppleConfig{
			AppIDs: getListEnv("APPLE_APP_IDS", "QLPRS3M2XY.com.priyanshukumar18.keepmore"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "keepmore-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", logFormat),
		},
		Environment: environment,
	}

	// Validate required fields
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Supabase.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.Supabase.ServiceRoleKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if cfg.Sync.Timeout <= 0 {
		return nil, fmt.Errorf("SYNC_TIMEOUT must be positive")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

// ConnectionString prefers DATABASE_URL and falls back to the DB_* parts.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MissingSettings names the Plaid variables that are not set.
func (c *PlaidConfig) MissingSettings() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "PLAID_CLIENT_ID")
	}
	if c.Secret == "" {
		missing = append(missing, "PLAID_SECRET")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// getListEnv splits a comma-separated variable, dropping blank entries.
func getListEnv(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
