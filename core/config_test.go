package core

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RefreshPadding != 500*time.Millisecond {
		t.Fatalf("unexpected refresh padding %v", cfg.RefreshPadding)
	}
	if cfg.ExpiryAge != 24*time.Hour {
		t.Fatalf("unexpected expiry age %v", cfg.ExpiryAge)
	}
	if cfg.PruneInterval != 5*time.Minute {
		t.Fatalf("unexpected prune interval %v", cfg.PruneInterval)
	}
	if cfg.SaveRetryInterval != time.Minute {
		t.Fatalf("unexpected save retry interval %v", cfg.SaveRetryInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero_padding_ok", mutate: func(c *Config) { c.RefreshPadding = 0 }},
		{name: "negative_padding", mutate: func(c *Config) { c.RefreshPadding = -time.Second }, wantErr: true},
		{name: "zero_expiry_age", mutate: func(c *Config) { c.ExpiryAge = 0 }, wantErr: true},
		{name: "zero_prune_interval", mutate: func(c *Config) { c.PruneInterval = 0 }, wantErr: true},
		{name: "zero_save_retry", mutate: func(c *Config) { c.SaveRetryInterval = 0 }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%t, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestOptionsResolverLayersRuntimeOverDefaults(t *testing.T) {
	resolver := GoOptionsResolver{}
	resolved, err := resolver.Resolve(
		DefaultConfig(),
		Config{},
		Config{RefreshPadding: 2 * time.Second},
	)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.RefreshPadding != 2*time.Second {
		t.Fatalf("expected runtime padding to win, got %v", resolved.RefreshPadding)
	}
	if resolved.ExpiryAge != DefaultExpiryAge {
		t.Fatalf("expected default expiry age, got %v", resolved.ExpiryAge)
	}
}

func TestProviderUsesRuntimeConfig(t *testing.T) {
	clock := newManualClock(mustParseTime(t, "2021-04-15T00:00:00Z"))
	store, err := NewMemoryCredentialStore(refreshableFixture(t, "2021-04-16T00:00:00Z"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	provider, err := NewProvider(
		Config{RefreshPadding: 3 * time.Second, SaveRetryInterval: 5 * time.Second},
		WithStore(store),
		WithIdentityClient(&fakeIdentityClient{}),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer provider.Close()

	cfg := provider.Config()
	if cfg.RefreshPadding != 3*time.Second {
		t.Fatalf("expected runtime refresh padding, got %v", cfg.RefreshPadding)
	}
	if cfg.SaveRetryInterval != 5*time.Second {
		t.Fatalf("expected runtime save retry interval, got %v", cfg.SaveRetryInterval)
	}
	if cfg.ExpiryAge != DefaultExpiryAge {
		t.Fatalf("expected default expiry age, got %v", cfg.ExpiryAge)
	}
}

func TestNewProviderRequiresStore(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected provider construction to fail without a store")
	}
}
