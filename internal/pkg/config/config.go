package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
)

// DefaultRazorpayPlanMap maps the live Razorpay plan ids to internal plans.
const DefaultRazorpayPlanMap = "plan_QmHPGorBzs8DcF:pro,plan_QmHzCbr1d8V0Z:premium,plan_QmHiWLzGOH65E4:basic"

type Database struct {
	Driver   string `validate:"oneof=mysql sqlite"`
	Host     string `validate:"required_if=Driver mysql"`
	Port     string `validate:"omitempty,numeric"`
	User     string `validate:"required_if=Driver mysql"`
	Password string
	Name     string `validate:"required_if=Driver mysql"`
	Path     string `validate:"required_if=Driver sqlite"`
}

type Cache struct {
	Host     string
	Port     string `validate:"omitempty,numeric"`
	Password string
	DB       int `validate:"gte=0"`
}

// Addr returns host:port, or "" when no cache is configured.
func (c Cache) Addr() string {
	if c.Host == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, c.Port)
}

type Supabase struct {
	URL string `validate:"required,url"`
	Key string `validate:"required"`
}

type Razorpay struct {
	WebhookSecret string            `validate:"required"`
	PlanMap       map[string]string `validate:"required,min=1,dive,keys,required,endkeys,oneof=basic premium pro"`
}

type Together struct {
	APIKey string `validate:"required"`
	URL    string `validate:"required,url"`
	Model  string `validate:"required"`
}

type Metrics struct {
	User     string
	Password string
}

// Config is built once at startup and passed down explicitly.
type Config struct {
	AppEnv  string `validate:"oneof=dev prod test"`
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	Database     Database
	Cache        Cache
	UsageBackend string `validate:"oneof=sql redis"`

	QuotaTimezone string         `validate:"required,timezone"`
	Location      *time.Location `validate:"-"`

	RateLimitMax    int           `validate:"gte=0"`
	RateLimitWindow time.Duration `validate:"gt=0"`

	Supabase Supabase
	Razorpay Razorpay
	Together Together

	MaxUploadBytes     int64 `validate:"gt=0"`
	CORSAllowedOrigins string
	Metrics            Metrics
}

func (c *Config) IsDev() bool { return c.AppEnv == "dev" }

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.AppHost, c.AppPort)
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	cacheDB, err := intFromEnv("CACHE_DB", 0)
	errs = append(errs, err)
	rateLimitMax, err := intFromEnv("RATE_LIMIT_MAX", 60)
	errs = append(errs, err)
	rateLimitWindow, err := durationFromEnv("RATE_LIMIT_WINDOW", time.Minute)
	errs = append(errs, err)
	maxUploadMB, err := intFromEnv("MAX_UPLOAD_MB", 10)
	errs = append(errs, err)
	planMap, err := ParsePlanMap(env.GetEnv("RAZORPAY_PLAN_MAP", DefaultRazorpayPlanMap))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:  env.GetEnv("APP_ENV", "prod"),
		AppHost: env.GetEnv("APP_HOST", "localhost"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
		Database: databaseFromEnv(),
		Cache: Cache{
			Host:     env.GetEnv("CACHE_HOST", ""),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       cacheDB,
		},
		UsageBackend:    env.GetEnv("USAGE_BACKEND", "sql"),
		QuotaTimezone:   env.GetEnv("QUOTA_TIMEZONE", "UTC"),
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: rateLimitWindow,
		Supabase: Supabase{
			URL: strings.TrimRight(env.GetEnv("SUPABASE_URL", ""), "/"),
			Key: env.GetEnv("SUPABASE_KEY", env.GetEnv("SUPABASE_SERVICE_ROLE_KEY", "")),
		},
		Razorpay: Razorpay{
			WebhookSecret: env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			PlanMap:       planMap,
		},
		Together: Together{
			APIKey: env.GetEnv("TOGETHER_API_KEY", ""),
			URL:    env.GetEnv("TOGETHER_API_URL", "https://api.together.xyz/v1/chat/completions"),
			Model:  env.GetEnv("TOGETHER_MODEL", "mistralai/Mixtral-8x7B-Instruct-v0.1"),
		},
		MaxUploadBytes:     int64(maxUploadMB) * 1024 * 1024,
		CORSAllowedOrigins: env.GetEnv("CORS_ALLOWED_ORIGINS", "*"),
		Metrics:            metricsFromEnv(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databaseFromEnv() Database {
	return Database{
		Driver:   env.GetEnv("DB_DRIVER", "mysql"),
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		User:     env.GetEnv("DB_USER", ""),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Name:     env.GetEnv("DB_NAME", ""),
		Path:     env.GetEnv("DB_PATH", "notefox.db"),
	}
}

func metricsFromEnv() Metrics {
	return Metrics{
		User:     env.GetEnv("METRICS_USER", "admin"),
		Password: env.GetEnv("METRICS_PASSWORD", ""),
	}
}

// Validate checks struct tags and cross-field rules and resolves Location.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.UsageBackend == "redis" && c.Cache.Host == "" {
		return errors.New("invalid configuration: USAGE_BACKEND=redis requires CACHE_HOST")
	}
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return fmt.Errorf("invalid configuration: QUOTA_TIMEZONE: %w", err)
	}
	c.Location = loc
	return nil
}

// ParsePlanMap parses "provider_plan_id:plan,..." pairs.
func ParsePlanMap(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, plan, ok := strings.Cut(pair, ":")
		id, plan = strings.TrimSpace(id), strings.ToLower(strings.TrimSpace(plan))
		if !ok || id == "" || plan == "" {
			return nil, fmt.Errorf("RAZORPAY_PLAN_MAP: malformed pair %q", pair)
		}
		out[id] = plan
	}
	return out, nil
}

func intFromEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
