package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string
	Port                string
	RedisURL            string
	CartTTL             time.Duration
	ProductsTable       string
	CheckoutSNSTopicARN string
	JWTSecret           string
	CORSOrigins         []string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("CART_TTL", "168h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CART_TTL: %w", err)
	}
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8086"),
		RedisURL:            getEnv("REDIS_URL", "redis://redis:6379"),
		CartTTL:             ttl,
		ProductsTable:       getEnv("PRODUCTS_TABLE", "products"),
		CheckoutSNSTopicARN: os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CheckoutSNSTopicARN == "" {
		return Config{}, fmt.Errorf("CHECKOUT_SNS_TOPIC_ARN is required")
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
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
