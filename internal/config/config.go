package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Timers   TimersConfig   `yaml:"timers"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// TimersConfig holds the operator-facing knobs of the timer engine.
type TimersConfig struct {
	// SweepInterval is how often a worker polls for due timers.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"TIMERS_SWEEP_INTERVAL" env-default:"1m"`

	// ClaimTTL bounds how long a claim may be held before another worker is
	// allowed to retake the timer (crash recovery).
	ClaimTTL time.Duration `yaml:"claim_ttl" env:"TIMERS_CLAIM_TTL" env-default:"5m"`

	// SweepBatchSize caps how many due timers one sweep tick claims.
	SweepBatchSize int `yaml:"sweep_batch_size" env:"TIMERS_SWEEP_BATCH_SIZE" env-default:"100"`

	// MaxRetries is the number of retryable failures tolerated per firing
	// before the timer is marked terminally failed.
	MaxRetries int `yaml:"max_retries" env:"TIMERS_MAX_RETRIES" env-default:"5"`

	// RetryBackoffBase and RetryBackoffMax bound the exponential backoff
	// applied between retry attempts.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" env:"TIMERS_RETRY_BACKOFF_BASE" env-default:"1m"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max"  env:"TIMERS_RETRY_BACKOFF_MAX"  env-default:"1h"`

	// SideEffectTimeout bounds one side-effect invocation. A stuck firing is
	// cut off and retried instead of holding its claim indefinitely.
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout" env:"TIMERS_SIDE_EFFECT_TIMEOUT" env-default:"30s"`

	// MaxDurationMinutes caps relative timers. Zero falls back to the
	// domain default (about 20 years).
	MaxDurationMinutes int `yaml:"max_duration_minutes" env:"TIMERS_MAX_DURATION_MINUTES" env-default:"0"`

	// PurgeRetentionDays is how long timer rows of deleted entities and
	// staff action records are kept before the cleanup job removes them.
	PurgeRetentionDays int `yaml:"purge_retention_days" env:"TIMERS_PURGE_RETENTION_DAYS" env-default:"90"`
}
