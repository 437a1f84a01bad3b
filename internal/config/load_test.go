package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			LogLevel:    "info",
			Environment: EnvDevelopment,
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/labelqueue",
		},
		Worker: WorkerConfig{
			MaxJobsPerRun:  20,
			HardTimeLimit:  60 * time.Second,
			LeaseDuration:  10 * time.Minute,
			RetentionDays:  7,
			BatchSize:      25,
			MaxItemsPerRun: 1000,
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, Validate(cfg))

	cfg.Server.Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateProductionRequiresTriggerSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Environment = EnvProduction
	cfg.Trigger.Secret = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTriggerSecret)

	cfg.Trigger.Secret = "a-long-shared-secret"
	assert.NoError(t, Validate(cfg))
}

func TestValidateDevelopmentToleratesMissingSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Trigger.Secret = ""
	assert.NoError(t, Validate(cfg))
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("LABELQ_DATABASE_URL", "postgres://localhost:5432/labelqueue_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, 20, cfg.Worker.MaxJobsPerRun)
	assert.Equal(t, 60*time.Second, cfg.Worker.HardTimeLimit)
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, 1000, cfg.Worker.MaxItemsPerRun)
	assert.Equal(t, 7, cfg.Worker.RetentionDays)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("LABELQ_DATABASE_URL", "postgres://localhost:5432/labelqueue_test")
	t.Setenv("LABELQ_SERVER_PORT", "9090")
	t.Setenv("LABELQ_WORKER_MAX_JOBS_PER_RUN", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Worker.MaxJobsPerRun)
}
