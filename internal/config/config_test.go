package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 10033, cfg.Port)
	assert.Equal(t, "localhost", cfg.RunStoreHost)
	assert.Equal(t, 5435, cfg.RunStorePort)
	assert.Equal(t, "localhost", cfg.UserManagerHost)
	assert.Equal(t, 10070, cfg.UserManagerPort)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.ClientTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SERVICE_NAME", "sum_service")
	t.Setenv("ID_SERVICE", "3")
	t.Setenv("db_manager_HOST", "runstore.internal")
	t.Setenv("db_manager_PORT", "9000")
	t.Setenv("user_manager_host", "users.internal")
	t.Setenv("user_manager_port", "9001")
	t.Setenv("DEBUG", "true")
	t.Setenv("TRACKLET_CLIENT_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sum_service", cfg.ServiceName)
	assert.Equal(t, int64(3), cfg.IDService)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.ClientTimeout)
	assert.Equal(t, "http://runstore.internal:9000", cfg.RunStoreURL())
	assert.Equal(t, "http://users.internal:9001", cfg.UserManagerURL())
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := config.Load()
	require.Error(t, err)
}

func TestInvalidIntsFallBackToDefaults(t *testing.T) {
	t.Setenv("db_manager_PORT", "not-a-number")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5435, cfg.RunStorePort)
}
