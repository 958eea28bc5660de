package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lockout policies. They are mutually exclusive; one is picked per deployment.
const (
	PolicyPersistent = "persistent"
	PolicySession    = "session"
)

// Persistent store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Guard    GuardConfig
	Auth     AuthConfig
	Alert    AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	SQLitePath        string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// AuthRequestsPerMinute caps authenticate calls per client IP
	AuthRequestsPerMinute int
}

// GuardConfig selects the lockout policy and its parameters
type GuardConfig struct {
	Policy          string
	Store           string
	MaxAttempts     int
	BlockDuration   time.Duration
	WarnAfter       int
	StoreTimeout    time.Duration
	CleanupInterval time.Duration
	// MemoryRetention is how long a clear in-memory record survives after its last attempt
	MemoryRetention time.Duration
}

type AuthConfig struct {
	Username             string
	PasswordHash         string
	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	TimingDelayOnSuccess bool
}

type AlertConfig struct {
	EmailTo     string
	EmailFrom   string
	AWSRegion   string
	Application string
}

// Enabled reports whether e-mail alerts should be sent
func (c AlertConfig) Enabled() bool {
	return c.EmailTo != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	policy := strings.ToLower(getEnv("GUARD_POLICY", PolicyPersistent))

	guard, err := loadGuardConfig(policy)
	if err != nil {
		return nil, err
	}

	passwordHash := getEnv("ACCESS_PASSWORD_HASH", "")
	if passwordHash == "" {
		return nil, fmt.Errorf("ACCESS_PASSWORD_HASH is required")
	}
	if !strings.HasPrefix(passwordHash, "$2") {
		return nil, fmt.Errorf("ACCESS_PASSWORD_HASH must be a bcrypt hash")
	}

	cfg := &Config{
		Database: loadDatabaseConfig(),
		Server: ServerConfig{
			Port:                  getEnv("PORT", "8080"),
			Env:                   env,
			LogLevel:              getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:        parseAllowedOrigins(env),
			TrustedProxies:        splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:           getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:          getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:           getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AuthRequestsPerMinute: getEnvAsInt("AUTH_REQUESTS_PER_MINUTE", 10),
		},
		Guard: guard,
		Auth: AuthConfig{
			Username:             getEnv("ACCESS_USERNAME", ""),
			PasswordHash:         passwordHash,
			TimingDelayBaseMs:    getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs:  getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 100),
			TimingDelayOnSuccess: getEnvAsBool("AUTH_TIMING_DELAY_ON_SUCCESS", false),
		},
		Alert: AlertConfig{
			EmailTo:     getEnv("ALERT_EMAIL_TO", ""),
			EmailFrom:   getEnv("ALERT_EMAIL_FROM", ""),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			Application: getEnv("APP_NAME", "deviceguard"),
		},
	}

	if cfg.Guard.Policy == PolicyPersistent && cfg.Guard.Store == StorePostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required for the postgres store")
	}

	if cfg.Alert.Enabled() && cfg.Alert.EmailFrom == "" {
		return nil, fmt.Errorf("ALERT_EMAIL_FROM is required when ALERT_EMAIL_TO is set")
	}

	return cfg, nil
}

// LoadStore loads only what is needed to reach the attempt store. Operator
// tooling uses it so it can run without the access secret configured.
func LoadStore() (DatabaseConfig, GuardConfig, error) {
	_ = godotenv.Load()

	guard, err := loadGuardConfig(strings.ToLower(getEnv("GUARD_POLICY", PolicyPersistent)))
	if err != nil {
		return DatabaseConfig{}, GuardConfig{}, err
	}
	return loadDatabaseConfig(), guard, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "deviceguard"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		SQLitePath:        getEnv("SQLITE_PATH", "deviceguard.db"),
	}
}

// loadGuardConfig applies the policy defaults and then any explicit overrides
func loadGuardConfig(policy string) (GuardConfig, error) {
	var g GuardConfig
	switch policy {
	case PolicyPersistent:
		g = GuardConfig{Policy: policy, MaxAttempts: 3, BlockDuration: 24 * time.Hour}
	case PolicySession:
		g = GuardConfig{Policy: policy, MaxAttempts: 3, BlockDuration: 5 * time.Minute}
	default:
		return GuardConfig{}, fmt.Errorf("GUARD_POLICY must be %q or %q (got %q)", PolicyPersistent, PolicySession, policy)
	}

	g.Store = strings.ToLower(getEnv("GUARD_STORE", StorePostgres))
	g.MaxAttempts = getEnvAsInt("GUARD_MAX_ATTEMPTS", g.MaxAttempts)
	g.BlockDuration = getEnvAsDuration("GUARD_BLOCK_DURATION", g.BlockDuration)
	g.WarnAfter = getEnvAsInt("GUARD_WARN_AFTER", 2)
	g.StoreTimeout = getEnvAsDuration("GUARD_STORE_TIMEOUT", 2*time.Second)
	g.CleanupInterval = getEnvAsDuration("GUARD_CLEANUP_INTERVAL", 1*time.Minute)
	g.MemoryRetention = getEnvAsDuration("GUARD_MEMORY_RETENTION", 24*time.Hour)

	if g.Store != StorePostgres && g.Store != StoreSQLite {
		return GuardConfig{}, fmt.Errorf("GUARD_STORE must be %q or %q (got %q)", StorePostgres, StoreSQLite, g.Store)
	}
	if g.MaxAttempts < 1 {
		return GuardConfig{}, fmt.Errorf("GUARD_MAX_ATTEMPTS must be at least 1 (got %d)", g.MaxAttempts)
	}
	if g.BlockDuration <= 0 {
		return GuardConfig{}, fmt.Errorf("GUARD_BLOCK_DURATION must be positive (got %s)", g.BlockDuration)
	}
	if g.StoreTimeout <= 0 {
		return GuardConfig{}, fmt.Errorf("GUARD_STORE_TIMEOUT must be positive (got %s)", g.StoreTimeout)
	}
	if g.CleanupInterval <= 0 {
		return GuardConfig{}, fmt.Errorf("GUARD_CLEANUP_INTERVAL must be positive (got %s)", g.CleanupInterval)
	}

	return g, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: the dashboard's Vite dev server and local variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
