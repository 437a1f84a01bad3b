package config

import "time"

// Environment names recognized in ServerConfig.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker" validate:"required"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port"         validate:"required,gt=0,lt=65536"`
	LogLevel    string `mapstructure:"log_level"    validate:"required,oneof=debug info warn error"`
	Environment string `mapstructure:"environment"  validate:"required,oneof=development production test"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// WorkerConfig bounds a single worker invocation and the queue's
// housekeeping policies.
type WorkerConfig struct {
	// MaxJobsPerRun caps how many jobs one invocation may process.
	MaxJobsPerRun int `mapstructure:"max_jobs_per_run" validate:"required,gt=0"`

	// HardTimeLimit is the host's execution limit for one invocation. The
	// loop stops claiming once elapsed time passes BudgetFraction of it.
	HardTimeLimit time.Duration `mapstructure:"hard_time_limit" validate:"required"`

	// LeaseDuration is how long a claim holds a job before ReclaimStale
	// may hand it to another invocation.
	LeaseDuration time.Duration `mapstructure:"lease_duration" validate:"required"`

	// RetentionDays is the minimum age of a terminal job before cleanup
	// may delete it.
	RetentionDays int `mapstructure:"retention_days" validate:"required,gt=0"`

	// BatchSize is the number of items sent to the external service per
	// call inside batch handlers.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`

	// MaxItemsPerRun caps how many items a continuation handler fetches in
	// one invocation before re-enqueueing.
	MaxItemsPerRun int `mapstructure:"max_items_per_run" validate:"required,gt=0"`
}

// TriggerConfig configures the externally scheduled trigger surface.
type TriggerConfig struct {
	// Secret is the shared bearer token checked on every trigger and admin
	// request. Empty is tolerated only outside production.
	Secret string `mapstructure:"secret"`

	// SelfURL is this service's own base URL, used by the fire-and-forget
	// continuation to re-trigger itself.
	SelfURL string `mapstructure:"self_url"`
}

// SchedulerConfig configures the optional embedded cron scheduler used in
// development, where no external scheduler fires the trigger endpoints.
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	PipelineSpec    string `mapstructure:"pipeline_spec"`
	MaintenanceSpec string `mapstructure:"maintenance_spec"`
}

// LLMConfig contains settings for the external completion and embedding
// services.
type LLMConfig struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	ModelName      string `mapstructure:"model_name"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}
