package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901") // 32 bytes
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-role-key")
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Sync.Timeout != 5*time.Minute {
		t.Errorf("Sync.Timeout = %v, want 5m", cfg.Sync.Timeout)
	}
	if cfg.Sync.TransactionDays != 180 {
		t.Errorf("Sync.TransactionDays = %d, want 180", cfg.Sync.TransactionDays)
	}
	if cfg.Plaid.Env != "sandbox" {
		t.Errorf("Plaid.Env = %q, want sandbox", cfg.Plaid.Env)
	}
	if cfg.RevenueCat.SkipStaleEvents {
		t.Error("RevenueCat.SkipStaleEvents should default to false")
	}
	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled should default to false")
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing ENCRYPTION_KEY, got nil")
	}
}

func TestLoad_InvalidEncryptionKeyLength(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("ENCRYPTION_KEY", "too-short")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid ENCRYPTION_KEY length, got nil")
	}
}

func TestLoad_MissingSupabase(t *testing.T) {
	tests := []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}

	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(key, "")
			os.Unsetenv(key)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for missing %s, got nil", key)
			}
		})
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := map[string]string{
		"DB_PORT":               "not-a-number",
		"SCHEDULER_WORKERS":     "many",
		"SCHEDULER_JOB_DELAY":   "soon",
		"SYNC_TIMEOUT":          "forever",
		"SYNC_TRANSACTION_DAYS": "half-a-year",
		"SYNC_MAX_PAGES":        "lots",
		"DB_MAX_OPEN_CONNS":     "0",
		"DB_MAX_IDLE_CONNS":     "-1",
		"DB_CONN_MAX_LIFETIME":  "a while",
		"DB_CONN_MAX_IDLE_TIME": "briefly",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q, got nil", key, value)
			}
		})
	}
}

func TestLoad_DatabasePool(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	db := cfg.Database
	if db.MaxOpenConns != 10 || db.MaxIdleConns != 5 || db.ConnMaxLifetime != 30*time.Minute || db.ConnMaxIdleTime != 5*time.Minute {
		t.Errorf("default pool = %+v", db)
	}

	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("DB_MAX_IDLE_CONNS", "8")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.MaxOpenConns != 3 || cfg.Database.MaxIdleConns != 3 {
		t.Errorf("idle connections should be capped at the open limit, got %+v", cfg.Database)
	}
}

func TestLoad_NonPositiveSyncTimeout(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SYNC_TIMEOUT", "0s")

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for zero SYNC_TIMEOUT, got nil")
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without cert path, got nil")
	}
}

func TestLoad_TLSValidation_MissingKeyPath(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "/path/to/cert")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without key path, got nil")
	}
}

func TestLoad_Lists(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com, localhost:3000")
	t.Setenv("PLAID_PRODUCTS", "transactions,investments")
	t.Setenv("ADMIN_EMAIL_ALLOWLIST", "ops@keepmore.app,, ")
	t.Setenv("CRON_SECRET", "cron-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Server.AllowedHosts) != 3 {
		t.Errorf("AllowedHosts length = %d, want 3", len(cfg.Server.AllowedHosts))
	}
	if len(cfg.Plaid.Products) != 2 || cfg.Plaid.Products[1] != "investments" {
		t.Errorf("Plaid.Products = %v", cfg.Plaid.Products)
	}
	if len(cfg.Plaid.CountryCodes) != 2 {
		t.Errorf("Plaid.CountryCodes = %v, want default US,CA", cfg.Plaid.CountryCodes)
	}
	if len(cfg.Admin.EmailAllowlist) != 1 {
		t.Errorf("Admin.EmailAllowlist = %v, want one entry", cfg.Admin.EmailAllowlist)
	}
	if cfg.Admin.CronSecret != "cron-secret" {
		t.Errorf("Admin.CronSecret = %q", cfg.Admin.CronSecret)
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_WORKERS", "10")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Enabled != true {
		t.Error("Scheduler.Enabled should be true")
	}
	if cfg.Scheduler.WorkerCount != 10 {
		t.Errorf("Scheduler.WorkerCount = %d, want 10", cfg.Scheduler.WorkerCount)
	}
	if cfg.Scheduler.RunOnStartup != true {
		t.Error("Scheduler.RunOnStartup should be true")
	}
}

func TestLoad_LogFormatFollowsEnvironment(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"invalid", true, true},   // returns default
		{"invalid", false, false}, // returns default
		{"", true, true},          // empty returns default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_BOOL_ENV"
			if tt.value == "" {
				os.Unsetenv(key)
			} else {
				t.Setenv(key, tt.value)
			}

			got := getBoolEnv(key, tt.defVal)
			if got != tt.expected {
				t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defVal, got, tt.expected)
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if got := cfg.ConnectionString(); got != expected {
		t.Errorf("ConnectionString() = %q, want %q", got, expected)
	}

	cfg.URL = "postgres://u:p@db.supabase.co:5432/postgres"
	if got := cfg.ConnectionString(); got != cfg.URL {
		t.Errorf("ConnectionString() = %q, want DATABASE_URL", got)
	}
}

func TestPlaidConfig_MissingSettings(t *testing.T) {
	cfg := PlaidConfig{Secret: "s"}
	missing := cfg.MissingSettings()
	if len(missing) != 1 || missing[0] != "PLAID_CLIENT_ID" {
		t.Errorf("MissingSettings() = %v", missing)
	}
}
