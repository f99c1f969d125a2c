package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/jobtracker/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Roles    RolesConfig    `yaml:"roles"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres or sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCHealthAddr  string        `yaml:"grpc_health_addr"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SecureCookies   bool          `yaml:"secure_cookies"`
}

// AuthConfig holds the two credential tiers. ServiceKey is server-side only: it signs
// session tokens and authorizes identity administration. ClientKey is the restricted
// key browsers send with every API call.
type AuthConfig struct {
	ServiceKey  string        `yaml:"service_key"`
	ClientKey   string        `yaml:"client_key"`
	LoginDomain string        `yaml:"login_domain"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	BcryptCost  int           `yaml:"bcrypt_cost"`
}

// LogValue keeps secrets out of structured logs.
func (a AuthConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("service_key", redact(a.ServiceKey)),
		slog.String("client_key", redact(a.ClientKey)),
		slog.String("login_domain", a.LoginDomain),
		slog.Duration("token_ttl", a.TokenTTL),
	)
}

// NotifyConfig selects the change-feed transport. Empty RedisAddr means in-process.
type NotifyConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Channel       string `yaml:"channel"`
}

// RolesConfig holds the role resolution policy.
type RolesConfig struct {
	// FallbackRole is used when an account has neither roles nor a legacy role.
	// Empty disables the fallback and such accounts fail with NO_ROLE_ASSIGNED.
	FallbackRole string `yaml:"fallback_role"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the configuration used when neither file nor env set a value.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCHealthAddr:  ":8081",
			AllowedOrigin:   "*",
			RequestsPerSec:  50,
			Burst:           100,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			LoginDomain: constants.DefaultLoginDomain,
			TokenTTL:    12 * time.Hour,
			BcryptCost:  10,
		},
		Notify: NotifyConfig{
			Channel: "jobtracker:changes",
		},
		Roles: RolesConfig{
			FallbackRole: string(constants.DefaultFallbackRole),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file, then environment
// variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", c.Server.GRPCHealthAddr)
	c.Server.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.Server.AllowedOrigin)
	c.Server.RequestsPerSec = getEnvAsFloat64("RATE_LIMIT_RPS", c.Server.RequestsPerSec)
	c.Server.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.Server.Burst)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.SecureCookies = getEnvAsBool("SECURE_COOKIES", c.Server.SecureCookies)

	c.Auth.ServiceKey = getEnv("AUTH_SERVICE_KEY", c.Auth.ServiceKey)
	c.Auth.ClientKey = getEnv("AUTH_CLIENT_KEY", c.Auth.ClientKey)
	c.Auth.LoginDomain = getEnv("LOGIN_DOMAIN", c.Auth.LoginDomain)
	c.Auth.TokenTTL = getEnvAsDuration("TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", c.Auth.BcryptCost)

	c.Notify.RedisAddr = getEnv("REDIS_ADDR", c.Notify.RedisAddr)
	c.Notify.RedisPassword = getEnv("REDIS_PASSWORD", c.Notify.RedisPassword)
	c.Notify.RedisDB = getEnvAsInt("REDIS_DB", c.Notify.RedisDB)
	c.Notify.Channel = getEnv("NOTIFY_CHANNEL", c.Notify.Channel)

	if v, ok := os.LookupEnv("ROLES_FALLBACK"); ok {
		c.Roles.FallbackRole = strings.TrimSpace(v)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrInvalidInput))
	}
	if c.Database.DSN == "" {
		errs = append(errs, NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput))
	}
	if len(c.Auth.ServiceKey) < 16 {
		errs = append(errs, NewAppError(CodeConfig, "AUTH_SERVICE_KEY must be at least 16 characters", ErrInvalidInput))
	}
	if c.Auth.ClientKey == "" {
		errs = append(errs, NewAppError(CodeConfig, "AUTH_CLIENT_KEY is required", ErrInvalidInput))
	}
	if c.Auth.ClientKey != "" && c.Auth.ClientKey == c.Auth.ServiceKey {
		errs = append(errs, NewAppError(CodeConfig, "AUTH_CLIENT_KEY must differ from AUTH_SERVICE_KEY", ErrInvalidInput))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput))
	}
	if c.Roles.FallbackRole != "" {
		if _, ok := constants.CanonicalizeRole(c.Roles.FallbackRole); !ok || c.Roles.FallbackRole == string(constants.RoleAdmin) {
			errs = append(errs, NewAppError(CodeConfig, "ROLES_FALLBACK must be a known non-admin role", ErrInvalidInput))
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogConfig.
func NewLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}
