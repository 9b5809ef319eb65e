package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	Jobs          JobsConfig
	Artifacts     ArtifactsConfig
	Sweep         SweepConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SessionConfig holds session management configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
	Lifetime       time.Duration
}

// JobsConfig holds background job configuration
type JobsConfig struct {
	// ArtifactExpiry is the download horizon applied to export artifacts
	// at the moment a job completes.
	ArtifactExpiry time.Duration
	// ProgressFlushRows bounds how often job counters are persisted:
	// at most once per ProgressFlushRows rows or per ProgressFlushInterval,
	// whichever comes first.
	ProgressFlushRows     int
	ProgressFlushInterval time.Duration
	MaxErrorReportEntries int
}

// ArtifactsConfig holds artifact storage configuration
type ArtifactsConfig struct {
	Dir         string
	TokenSecret string
}

// SweepConfig holds periodic sweeper configuration
type SweepConfig struct {
	SessionInterval      time.Duration
	SessionInitialDelay  time.Duration
	ArtifactInterval     time.Duration
	ArtifactInitialDelay time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// fileConfig mirrors the env keys that may be supplied via an optional TOML
// file (ADMINKIT_CONFIG_FILE). Environment variables take precedence.
type fileConfig struct {
	Server   map[string]string `toml:"server"`
	Database map[string]string `toml:"database"`
	Session  map[string]string `toml:"session"`
	Jobs     map[string]string `toml:"jobs"`
	Sweep    map[string]string `toml:"sweep"`
}

var fileValues map[string]string

// Load loads configuration from an optional TOML file and environment
// variables. Env always wins over the file.
func Load() (*Config, error) {
	if err := loadFile(os.Getenv("ADMINKIT_CONFIG_FILE")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "adminkit"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "adminkit"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Session: SessionConfig{
			CookieName:     getEnv("SESSION_COOKIE_NAME", "adminkit_session"),
			CookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookiePath:     getEnv("SESSION_COOKIE_PATH", "/"),
			CookieSecure:   parseBool("SESSION_COOKIE_SECURE", false),
			CookieHTTPOnly: parseBool("SESSION_COOKIE_HTTP_ONLY", true),
			CookieSameSite: getEnv("SESSION_COOKIE_SAME_SITE", "Lax"),
			Lifetime:       parseDuration("SESSION_LIFETIME", "24h"),
		},
		Jobs: JobsConfig{
			ArtifactExpiry:        parseDuration("JOBS_ARTIFACT_EXPIRY", "24h"),
			ProgressFlushRows:     parseInt("JOBS_PROGRESS_FLUSH_ROWS", 100),
			ProgressFlushInterval: parseDuration("JOBS_PROGRESS_FLUSH_INTERVAL", "2s"),
			MaxErrorReportEntries: parseInt("JOBS_MAX_ERROR_ENTRIES", 10000),
		},
		Artifacts: ArtifactsConfig{
			Dir:         getEnv("ARTIFACTS_DIR", "/var/lib/adminkit/artifacts"),
			TokenSecret: getEnv("ARTIFACTS_TOKEN_SECRET", ""),
		},
		Sweep: SweepConfig{
			SessionInterval:      parseDuration("SWEEP_SESSION_INTERVAL", "15m"),
			SessionInitialDelay:  parseDuration("SWEEP_SESSION_INITIAL_DELAY", "2m"),
			ArtifactInterval:     parseDuration("SWEEP_ARTIFACT_INTERVAL", "6h"),
			ArtifactInitialDelay: parseDuration("SWEEP_ARTIFACT_INITIAL_DELAY", "5m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "adminkit"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Artifacts.TokenSecret == "" {
		return fmt.Errorf("ARTIFACTS_TOKEN_SECRET is required")
	}
	return nil
}

// loadFile flattens the TOML sections into the same key space the env
// variables use, so getEnv can consult them as a fallback.
func loadFile(path string) error {
	fileValues = nil
	if path == "" {
		return nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	fileValues = make(map[string]string)
	for prefix, section := range map[string]map[string]string{
		"SERVER":  fc.Server,
		"DB":      fc.Database,
		"SESSION": fc.Session,
		"JOBS":    fc.Jobs,
		"SWEEP":   fc.Sweep,
	} {
		for k, v := range section {
			fileValues[prefix+"_"+normalizeKey(k)] = v
		}
	}

	return nil
}

func normalizeKey(k string) string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := fileValues[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
