package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Log    LogConfig
	Remote RemoteConfig
	Cache  CacheConfig
	Audit  AuditConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"consign-review"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// RemoteConfig holds settings for the platform API client.
type RemoteConfig struct {
	BaseURL         string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:5000/api"`
	Timeout         time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
	BulkheadSize    int           `envconfig:"REMOTE_BULKHEAD_SIZE" default:"20"`
	BulkheadWait    time.Duration `envconfig:"REMOTE_BULKHEAD_WAIT" default:"1s"`
	BreakerRequests uint32        `envconfig:"REMOTE_BREAKER_MIN_REQUESTS" default:"5"`
	BreakerRatio    float64       `envconfig:"REMOTE_BREAKER_FAILURE_RATIO" default:"0.6"`
	BreakerInterval time.Duration `envconfig:"REMOTE_BREAKER_INTERVAL" default:"30s"`
	BreakerTimeout  time.Duration `envconfig:"REMOTE_BREAKER_TIMEOUT" default:"30s"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type            string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	MasterItemTTL   time.Duration `envconfig:"MASTER_ITEM_CACHE_TTL" default:"5m"`
	CategoryTTL     time.Duration `envconfig:"CATEGORY_CACHE_TTL" default:"30m"`
	DispatchLockTTL time.Duration `envconfig:"DISPATCH_LOCK_TTL" default:"1m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"consign-review"`
}

// AuditConfig holds dispatch audit log settings.
type AuditConfig struct {
	Type            string        `envconfig:"AUDIT_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path            string        `envconfig:"AUDIT_DB_PATH" default:"./data/audit.db"`
	Retention       time.Duration `envconfig:"AUDIT_RETENTION" default:"720h"`
	CleanupInterval time.Duration `envconfig:"AUDIT_CLEANUP_INTERVAL" default:"24h"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"AUDIT_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"AUDIT_DB_PORT" default:"5432"`
	Name     string `envconfig:"AUDIT_DB_NAME" default:"consign_review"`
	User     string `envconfig:"AUDIT_DB_USER" default:"postgres"`
	Password string `envconfig:"AUDIT_DB_PASS" default:""`
	SSLMode  string `envconfig:"AUDIT_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"consign_review"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"dispatch_audit"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	TokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"8h"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (a *AuditConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		a.User, a.Password, a.Host, a.Port, a.Name, a.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (a *AuditConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.User, a.Password, a.Host, a.Port, a.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DispatchLockTTL returns the configured dispatch lock TTL, raised so it
// outlasts the mutation and the follow-up refetch including bulkhead waits.
func (c *Config) DispatchLockTTL() time.Duration {
	floor := 2*(c.Remote.Timeout+c.Remote.BulkheadWait) + 5*time.Second
	if c.Cache.DispatchLockTTL < floor {
		return floor
	}
	return c.Cache.DispatchLockTTL
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
