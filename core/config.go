package core

import (
	"fmt"
	"time"
)

const (
	// DefaultRefreshPadding is the pre-expiry window during which Fetch
	// proactively refreshes.
	DefaultRefreshPadding = 500 * time.Millisecond
	// DefaultExpiryAge is how long a settled refresh-map entry is retained
	// past its expiry date before the pruner evicts it.
	DefaultExpiryAge = 24 * time.Hour
	// DefaultPruneInterval is the cadence of the refresh-map pruner.
	DefaultPruneInterval = 5 * time.Minute
	// DefaultSaveRetryInterval bounds opportunistic save retries after a
	// persistence failure.
	DefaultSaveRetryInterval = time.Minute
)

type Config struct {
	RefreshPadding    time.Duration `koanf:"refresh_padding" mapstructure:"refresh_padding"`
	ExpiryAge         time.Duration `koanf:"expiry_age" mapstructure:"expiry_age"`
	PruneInterval     time.Duration `koanf:"prune_interval" mapstructure:"prune_interval"`
	SaveRetryInterval time.Duration `koanf:"save_retry_interval" mapstructure:"save_retry_interval"`
}

func DefaultConfig() Config {
	return Config{
		RefreshPadding:    DefaultRefreshPadding,
		ExpiryAge:         DefaultExpiryAge,
		PruneInterval:     DefaultPruneInterval,
		SaveRetryInterval: DefaultSaveRetryInterval,
	}
}

func (c Config) Validate() error {
	if c.RefreshPadding < 0 {
		return fmt.Errorf("core: refresh_padding cannot be negative")
	}
	if c.ExpiryAge <= 0 {
		return fmt.Errorf("core: expiry_age must be positive")
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("core: prune_interval must be positive")
	}
	if c.SaveRetryInterval <= 0 {
		return fmt.Errorf("core: save_retry_interval must be positive")
	}
	return nil
}
