package config

import (
	"fmt"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	// env-required accepts a set-but-empty variable, so the empty string
	// must be caught here
	if c.Database.DSN == "" {
		return fmt.Errorf("database: dsn is required")
	}
	if err := c.Timers.validate(); err != nil {
		return fmt.Errorf("timers: %w", err)
	}
	return nil
}

func (t *TimersConfig) validate() error {
	if t.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0 (got %v)", t.SweepInterval)
	}
	if t.ClaimTTL <= 0 {
		return fmt.Errorf("claim_ttl must be > 0 (got %v)", t.ClaimTTL)
	}
	if t.ClaimTTL <= t.SweepInterval {
		return fmt.Errorf("claim_ttl (%v) must exceed sweep_interval (%v), otherwise live claims get retaken", t.ClaimTTL, t.SweepInterval)
	}
	if t.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep_batch_size must be > 0 (got %d)", t.SweepBatchSize)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", t.MaxRetries)
	}
	if t.RetryBackoffBase <= 0 {
		return fmt.Errorf("retry_backoff_base must be > 0 (got %v)", t.RetryBackoffBase)
	}
	if t.RetryBackoffMax < t.RetryBackoffBase {
		return fmt.Errorf("retry_backoff_max (%v) must be >= retry_backoff_base (%v)", t.RetryBackoffMax, t.RetryBackoffBase)
	}
	if t.SideEffectTimeout <= 0 {
		return fmt.Errorf("side_effect_timeout must be > 0 (got %v)", t.SideEffectTimeout)
	}
	if t.MaxDurationMinutes < 0 {
		return fmt.Errorf("max_duration_minutes must be >= 0 (got %d)", t.MaxDurationMinutes)
	}
	if t.MaxDurationMinutes > domain.MaxDurationMinutes {
		return fmt.Errorf("max_duration_minutes %d exceeds the hard cap %d", t.MaxDurationMinutes, domain.MaxDurationMinutes)
	}
	if t.PurgeRetentionDays <= 0 {
		return fmt.Errorf("purge_retention_days must be > 0 (got %d)", t.PurgeRetentionDays)
	}
	return nil
}

// DurationCapMinutes returns the effective cap for relative timers.
func (t *TimersConfig) DurationCapMinutes() int {
	if t.MaxDurationMinutes > 0 {
		return t.MaxDurationMinutes
	}
	return domain.MaxDurationMinutes
}
