package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	ResendAPIKey        string `env:"RESEND_API_KEY,required=true"`
	ResendBaseURL       string `env:"RESEND_BASE_URL,default=https://api.resend.com"`
	ResendWebhookSecret string `env:"RESEND_WEBHOOK_SECRET"`
	ServiceSecret       string `env:"SERVICE_SECRET,required=true"`
	RedisURL            string `env:"REDIS_URL"`
	RabbitMQURL         string `env:"RABBITMQ_URL"`
	DispatchBatchLimit  int    `env:"DISPATCH_BATCH_LIMIT,default=25"`
	SendRatePerSec      int    `env:"SEND_RATE_PER_SEC,default=2"`
	DispatchIntervalSec int    `env:"DISPATCH_INTERVAL_SEC,default=60"`
	WebhookToleranceSec int    `env:"WEBHOOK_TOLERANCE_SEC,default=300"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
