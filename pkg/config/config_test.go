package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Allocation.MinExpiryDays)
	assert.Equal(t, config.DispatchAllOrNothing, cfg.Allocation.DispatchMode)
	assert.Equal(t, "IB", cfg.Allocation.FolioPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Allocation.ExternalFolioLookBack)
	assert.False(t, cfg.Allocation.CrossInstitution)
	assert.False(t, cfg.Allocation.ValidationRequiresStock)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("ALLOC_MIN_EXPIRY_DAYS", "90")
	t.Setenv("ALLOC_DISPATCH_MODE", "incremental")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DB_STATEMENT_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Allocation.MinExpiryDays)
	assert.Equal(t, config.DispatchIncremental, cfg.Allocation.DispatchMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.DB.StatementTimeout)
}

func TestLoad_ModoDeDespachoInvalido(t *testing.T) {
	t.Setenv("ALLOC_DISPATCH_MODE", "parcial")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "farmacia", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/farmacia?sslmode=disable", c.DSN())
	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
