package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingTriggerSecret is returned when production configuration omits
// the trigger secret. The trigger surface must fail closed rather than run
// unauthenticated.
var ErrMissingTriggerSecret = errors.New(
	"trigger secret must be configured in production")

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence and use the LABELQ_ prefix
// with underscores for nesting (e.g. LABELQ_DATABASE_URL,
// LABELQ_WORKER_MAX_JOBS_PER_RUN).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("labelqueue")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LABELQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural constraints and the production fail-closed rule.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Server.Environment == EnvProduction && cfg.Trigger.Secret == "" {
		return ErrMissingTriggerSecret
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)

	// Registering a default (even empty) is what lets AutomaticEnv feed
	// these keys through Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("trigger.secret", "")
	v.SetDefault("trigger.self_url", "")
	v.SetDefault("llm.gemini_api_key", "")

	v.SetDefault("worker.max_jobs_per_run", 20)
	v.SetDefault("worker.hard_time_limit", 60*time.Second)
	v.SetDefault("worker.lease_duration", 10*time.Minute)
	v.SetDefault("worker.retention_days", 7)
	v.SetDefault("worker.batch_size", 25)
	v.SetDefault("worker.max_items_per_run", 1000)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.pipeline_spec", "* * * * *")
	v.SetDefault("scheduler.maintenance_spec", "0 * * * *")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
}
