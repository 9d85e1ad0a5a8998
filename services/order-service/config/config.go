package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
)

const dbSecretName = "order/DB_CREDENTIALS"

type Config struct {
	Env              string
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	OrderSNSTopicARN string
	CheckoutQueueURL string
	CORSOrigins      []string
}

// SecretSource is satisfied by *awspkg.SecretsClient.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// Load reads the environment (and .env when present). With
// AWS_USE_SECRETS=true the database credentials come from Secrets Manager.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	var secrets SecretSource
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		secrets = awspkg.NewSecretsClient(awsCfg)
	}
	return LoadWithSecrets(ctx, secrets)
}

func LoadWithSecrets(ctx context.Context, secrets SecretSource) (*Config, error) {
	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8083"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		CheckoutQueueURL: os.Getenv("CHECKOUT_QUEUE_URL"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if secrets != nil {
		m, err := secrets.GetSecretMap(ctx, dbSecretName)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dbSecretName, err)
		}
		override(&cfg.PostgresUser, m["POSTGRES_USER"])
		override(&cfg.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&cfg.PostgresDB, m["POSTGRES_DB"])
		override(&cfg.PostgresHost, m["POSTGRES_HOST"])
		override(&cfg.PostgresPort, m["POSTGRES_PORT"])
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

// DSN is the gorm postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
