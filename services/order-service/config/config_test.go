package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-platform/backend/services/order-service/config"
)

type fakeSecrets struct {
	values map[string]string
	err    error
	asked  string
}

func (f *fakeSecrets) GetSecretMap(_ context.Context, name string) (map[string]string, error) {
	f.asked = name
	return f.values, f.err
}

func setDB(t *testing.T) {
	t.Setenv("POSTGRES_USER", "orders")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "orders")
	t.Setenv("POSTGRES_HOST", "")
}

func TestLoadWithSecrets_Env(t *testing.T) {
	setDB(t)
	t.Setenv("CHECKOUT_QUEUE_URL", "http://localhost:4566/000000000000/checkout")

	cfg, err := config.LoadWithSecrets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Equal(t, "http://localhost:4566/000000000000/checkout", cfg.CheckoutQueueURL)
	assert.Equal(t, "host=localhost user=orders password=pw dbname=orders port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestLoadWithSecrets_Override(t *testing.T) {
	setDB(t)
	secrets := &fakeSecrets{values: map[string]string{
		"POSTGRES_PASSWORD": "from-secret",
		"POSTGRES_HOST":     "db.internal",
		"POSTGRES_PORT":     "",
	}}

	cfg, err := config.LoadWithSecrets(context.Background(), secrets)
	require.NoError(t, err)
	assert.Equal(t, "order/DB_CREDENTIALS", secrets.asked)
	assert.Equal(t, "from-secret", cfg.PostgresPassword)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.Equal(t, "5432", cfg.PostgresPort)
	assert.Equal(t, "orders", cfg.PostgresUser)
}

func TestLoadWithSecrets_Errors(t *testing.T) {
	setDB(t)
	_, err := config.LoadWithSecrets(context.Background(), &fakeSecrets{err: errors.New("access denied")})
	assert.Error(t, err)

	t.Setenv("POSTGRES_PASSWORD", "")
	_, err = config.LoadWithSecrets(context.Background(), nil)
	assert.EqualError(t, err, "database config incomplete")
}
