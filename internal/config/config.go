package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable configuration handed to each component's
// constructor. There is no settings singleton; Load is called once at startup
// and the struct is passed down explicitly.
type Config struct {
	AppEnv   string
	HTTPAddr string
	LogDebug bool

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTIssuer        string
	JWTAudience      string
	JWTAccessSecret  string
	JWTRefreshSecret string
	TokenPepper      string

	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	SessionTTL             time.Duration
	PasswordResetTTL       time.Duration
	MaxFailedLoginAttempts int
	LockoutDuration        time.Duration
	MaxSessionsPerUser     int
	BcryptCost             int

	APIRateLimitRPM    int
	AuthRateLimitRPM   int
	ForgotRateLimitRPM int
	CORSOrigins        []string

	EmailFrom    string
	EmailTimeout time.Duration

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Values already present in the environment win over file values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogDebug: getBool("LOG_DEBUG", false),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:    getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTIssuer:        getEnv("JWT_ISSUER", "ticketdesk"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "ticketdesk-api"),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		TokenPepper:      getEnv("TOKEN_PEPPER", ""),

		EmailFrom: getEnv("EMAIL_FROM", "no-reply@ticketdesk.local"),

		OTELMetricsEnabled:       getBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:        getBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:          getBool("OTEL_LOGS_ENABLED", false),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "ticketdesk-auth-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		EnableOTelHTTP:           getBool("OTEL_HTTP_ENABLED", false),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getMinutes("ACCESS_TOKEN_TTL_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDays("REFRESH_TOKEN_TTL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.PasswordResetTTL, err = getHours("PASSWORD_RESET_TTL_HOURS", 1); err != nil {
		return nil, err
	}
	if cfg.MaxFailedLoginAttempts, err = getInt("MAX_FAILED_LOGIN_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.LockoutDuration, err = getMinutes("LOCKOUT_DURATION_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.MaxSessionsPerUser, err = getInt("MAX_SESSIONS_PER_USER", 5); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPM, err = getInt("API_RATE_LIMIT_RPM", 120); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = getInt("AUTH_RATE_LIMIT_RPM", 10); err != nil {
		return nil, err
	}
	if cfg.ForgotRateLimitRPM, err = getInt("FORGOT_RATE_LIMIT_RPM", 3); err != nil {
		return nil, err
	}
	if cfg.EmailTimeout, err = getDuration("EMAIL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	// Sessions live as long as the refresh credential that renews them.
	cfg.SessionTTL = cfg.RefreshTokenTTL
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		recordConfigLoad(context.Background(), cfg.AppEnv, "failure", err)
		return nil, err
	}
	recordConfigLoad(context.Background(), cfg.AppEnv, "success", nil)
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("validate config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("validate config: DATABASE_DSN is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		return fmt.Errorf("validate config: JWT_ACCESS_SECRET must be at least 32 bytes")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return fmt.Errorf("validate config: JWT_REFRESH_SECRET must be at least 32 bytes")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("validate config: access and refresh secrets must differ")
	}
	if len(c.TokenPepper) < 16 {
		return fmt.Errorf("validate config: TOKEN_PEPPER must be at least 16 bytes")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.PasswordResetTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	if c.MaxFailedLoginAttempts < 1 {
		return fmt.Errorf("validate config: MAX_FAILED_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("validate config: LOCKOUT_DURATION_MINUTES must be positive")
	}
	if c.MaxSessionsPerUser < 1 {
		return fmt.Errorf("validate config: MAX_SESSIONS_PER_USER must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getMinutes(key string, fallback int) (time.Duration, error) {
	n, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Minute, nil
}

func getHours(key string, fallback int) (time.Duration, error) {
	n, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Hour, nil
}

func getDays(key string, fallback int) (time.Duration, error) {
	n, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * 24 * time.Hour, nil
}
