package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds process settings that vary per deployment rather than per
// pipeline definition.
type EnvConfig struct {
	ConfigPath        string `env:"HARDHAT_CONFIG" envDefault:"config/config.yaml"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir            string `env:"LOG_DIR" envDefault:"logs"`
	DatabaseURL       string `env:"DATABASE_URL" envDefault:"artifacts/runs.db"`
	RabbitMQURL       string `env:"RABBITMQ_URL"`
	QueueName         string `env:"QUEUE_NAME" envDefault:"pipeline_runs"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Port              int    `env:"PORT" envDefault:"8080"`
	UploadDir         string `env:"UPLOAD_DIR" envDefault:"uploads"`
}

func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return cfg, nil
}
