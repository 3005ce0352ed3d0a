package config

import (
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/NoteFox/internal/pkg/env"
)

// RelayConfig configures the webhook forwarding relay.
type RelayConfig struct {
	AppEnv        string        `validate:"oneof=dev prod test"`
	Host          string        `validate:"required"`
	Port          string        `validate:"required,numeric"`
	WebhookSecret string        `validate:"required"`
	TargetURL     string        `validate:"required,url"`
	Timeout       time.Duration `validate:"gt=0"`
	Metrics       Metrics
}

func (c *RelayConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func LoadRelay() (*RelayConfig, error) {
	timeout, err := durationFromEnv("RELAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg := &RelayConfig{
		AppEnv:        env.GetEnv("APP_ENV", "prod"),
		Host:          env.GetEnv("RELAY_HOST", "0.0.0.0"),
		Port:          env.GetEnv("RELAY_PORT", "8000"),
		WebhookSecret: env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		TargetURL:     env.GetEnv("TARGET_WEBHOOK_URL", ""),
		Timeout:       timeout,
		Metrics:       metricsFromEnv(),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid relay configuration: %w", err)
	}
	return cfg, nil
}
