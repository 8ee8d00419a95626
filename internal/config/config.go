package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends understood by repositories.Open
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Email         EmailConfig
	SupportBundle SupportBundleConfig
	Retention     RetentionConfig
	Telemetry     TelemetryConfig
	Admin         AdminConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"28101"`
	Env             string        `env:"ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	// TrustedProxies are CIDR ranges whose forwarding headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	// CORSAllowedOrigins lists the web UI origins allowed to call the API
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	Postgres DatabaseConfig
	// SQLitePath is a file path or ":memory:"
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"csm.db"`
	MongoURI      string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"csm"`
	MongoTimeout  time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"csm"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET"`
	AccessTokenExpiry time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	// Failed logins are padded to at least LoginDelayBase plus jitter
	LoginDelayBase   time.Duration `env:"LOGIN_DELAY_BASE" envDefault:"100ms"`
	LoginDelayRandom time.Duration `env:"LOGIN_DELAY_RANDOM" envDefault:"50ms"`
}

type RedisConfig struct {
	// URL enables Redis-backed token revocation when set
	URL string `env:"REDIS_URL"`
}

type EmailConfig struct {
	Enabled     bool   `env:"EMAIL_ENABLED" envDefault:"false"`
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	FromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"csm@localhost"`
}

type SupportBundleConfig struct {
	Bucket    string `env:"SUPPORT_BUNDLE_BUCKET"`
	Endpoint  string `env:"SUPPORT_BUNDLE_S3_ENDPOINT"`
	Region    string `env:"SUPPORT_BUNDLE_S3_REGION" envDefault:"us-east-1"`
	PathStyle bool   `env:"SUPPORT_BUNDLE_S3_PATH_STYLE" envDefault:"false"`
	// LocalDir is used when no bucket is configured
	LocalDir string `env:"SUPPORT_BUNDLE_DIR" envDefault:"support_bundle"`
}

type RetentionConfig struct {
	AuditLogDays      int           `env:"AUDIT_LOG_RETENTION_DAYS" envDefault:"90"`
	SupportBundleDays int           `env:"SUPPORT_BUNDLE_RETENTION_DAYS" envDefault:"30"`
	CleanupInterval   time.Duration `env:"RETENTION_CLEANUP_INTERVAL" envDefault:"1h"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"csm-agent"`
}

// AdminConfig seeds the first admin user during setup init
type AdminConfig struct {
	Username string `env:"CSM_ADMIN_USER" envDefault:"admin"`
	Password string `env:"CSM_ADMIN_PASSWORD"`
}

// Load reads the agent configuration. JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}

	if cfg.Retention.CleanupInterval <= 0 {
		return nil, fmt.Errorf("RETENTION_CLEANUP_INTERVAL must be positive (got %s)", cfg.Retention.CleanupInterval)
	}

	return cfg, nil
}

// LoadSetup reads the configuration used by the setup commands, which only
// touch storage and never sign tokens
func LoadSetup() (*Config, error) {
	return parse()
}

func parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.Storage.Backend {
	case BackendPostgres:
		if cfg.Storage.Postgres.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	case BackendSQLite, BackendMongo, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
