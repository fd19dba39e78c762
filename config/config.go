package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Draft store backends
const (
	DraftStoreMemory   = "memory"
	DraftStorePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for audit logs. When nil, audit uses main DB.
	Drafts        DraftsConfig
	Workspace     WorkspaceConfig
	Catalog       CatalogConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// DraftsConfig controls where editor sessions are kept
type DraftsConfig struct {
	Store           string // memory or postgres
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

// WorkspaceConfig holds the connection to the remote workspace
type WorkspaceConfig struct {
	Host    string
	Token   string // Fallback when no token is forwarded by the proxy
	Timeout time.Duration
}

// CatalogConfig controls the option list cache
type CatalogConfig struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	WarmOnStart     bool
}

// AuditConfig controls the asynchronous audit writer
type AuditConfig struct {
	Enabled       bool
	BufferSize    int
	WorkerCount   int
	BatchSize     int
	FlushInterval time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	LogFile        string // Optional rotated log file
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int
	LogCompress    bool
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		Drafts: DraftsConfig{
			Store:           strings.ToLower(getEnv("DRAFT_STORE", DraftStoreMemory)),
			MaxAge:          getEnvAsDuration("DRAFT_MAX_AGE", 7*24*time.Hour),
			CleanupInterval: getEnvAsDuration("DRAFT_CLEANUP_INTERVAL", time.Hour),
		},
		Workspace: WorkspaceConfig{
			Host:    getEnv("DATABRICKS_HOST", ""),
			Token:   getEnv("DATABRICKS_TOKEN", ""),
			Timeout: getEnvAsDuration("DATABRICKS_TIMEOUT", 30*time.Second),
		},
		Catalog: CatalogConfig{
			TTL:             getEnvAsDuration("CATALOG_CACHE_TTL", time.Hour),
			MaxEntries:      getEnvAsInt("CATALOG_CACHE_MAX_ENTRIES", 256),
			CleanupInterval: getEnvAsDuration("CATALOG_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			WarmOnStart:     getEnvAsBool("CATALOG_WARM_ON_START", false),
		},
		Audit: AuditConfig{
			Enabled:       getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize:    getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount:   getEnvAsInt("AUDIT_WORKERS", 4),
			BatchSize:     getEnvAsInt("AUDIT_BATCH_SIZE", 50),
			FlushInterval: getEnvAsDuration("AUDIT_FLUSH_INTERVAL", time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			LogFile:        getEnv("LOG_FILE", ""),
			LogMaxSizeMB:   getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			LogMaxBackups:  getEnvAsInt("LOG_MAX_BACKUPS", 5),
			LogMaxAgeDays:  getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			LogCompress:    getEnvAsBool("LOG_COMPRESS", true),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Workspace.Host == "" {
		return fmt.Errorf("workspace host is required: set DATABRICKS_HOST")
	}

	switch c.Drafts.Store {
	case DraftStoreMemory:
	case DraftStorePostgres:
		// Database validation (DATABASE_URL or DB_* vars)
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unknown draft store %q: use %s or %s", c.Drafts.Store, DraftStoreMemory, DraftStorePostgres)
	}

	if c.IsProduction() && c.Drafts.Store == DraftStoreMemory {
		return fmt.Errorf("draft store %s is not allowed in production", DraftStoreMemory)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// UsesPostgres reports whether drafts and audit logs are kept in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.Drafts.Store == DraftStorePostgres
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "policy_builder"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "policy_builder"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from DATABRICKS_APP_PORT, PORT or
// SERVER_PORT, in that order (default: 8000)
func getPort() int {
	for _, key := range []string{"DATABRICKS_APP_PORT", "PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
