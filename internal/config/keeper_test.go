package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadKeeperRequiresProgramID(t *testing.T) {
	t.Setenv("PROGRAM_ID", "")
	if _, err := LoadKeeper(); err == nil {
		t.Fatal("expected error when PROGRAM_ID is missing")
	}
}

func TestLoadKeeperDefaults(t *testing.T) {
	t.Setenv("PROGRAM_ID", "11111111111111111111111111111111")

	cfg, err := LoadKeeper()
	if err != nil {
		t.Fatalf("LoadKeeper() error = %v", err)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Fatalf("CheckInterval = %s, want 30s", cfg.CheckInterval)
	}
	if cfg.RoundDuration != time.Minute || cfg.BettingWindow != time.Minute {
		t.Fatalf("unexpected round timing: %+v", cfg)
	}
	if cfg.DistributeDelay != 3*time.Second {
		t.Fatalf("DistributeDelay = %s, want 3s", cfg.DistributeDelay)
	}
	if cfg.DistributeWorkers != 4 || cfg.ErrorHistory != 10 {
		t.Fatalf("unexpected worker/error settings: %+v", cfg)
	}
	if cfg.Commitment != "confirmed" {
		t.Fatalf("Commitment = %q, want confirmed", cfg.Commitment)
	}
}

func TestKeeperValidate(t *testing.T) {
	t.Setenv("PROGRAM_ID", "11111111111111111111111111111111")
	base, err := LoadKeeper()
	if err != nil {
		t.Fatalf("LoadKeeper() error = %v", err)
	}

	if err := base.Validate(); !errors.Is(err, ErrMissingAuthority) {
		t.Fatalf("Validate() = %v, want ErrMissingAuthority", err)
	}

	base.AuthorityKeyPath = "/tmp/authority.json"
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*KeeperConfig)
	}{
		{"window exceeds duration", func(c *KeeperConfig) { c.BettingWindow = 2 * c.RoundDuration }},
		{"sub-millisecond round", func(c *KeeperConfig) {
			c.RoundDuration = 500 * time.Microsecond
			c.BettingWindow = 500 * time.Microsecond
		}},
		{"sub-millisecond window", func(c *KeeperConfig) { c.BettingWindow = 500 * time.Microsecond }},
		{"zero interval", func(c *KeeperConfig) { c.CheckInterval = 0 }},
		{"unknown commitment", func(c *KeeperConfig) { c.Commitment = "max" }},
		{"negative delay", func(c *KeeperConfig) { c.DistributeDelay = -time.Second }},
		{"no workers", func(c *KeeperConfig) { c.DistributeWorkers = 0 }},
	}
	for _, tt := range tests {
		cfg := base
		tt.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidKeeper) {
			t.Fatalf("%s: Validate() = %v, want ErrInvalidKeeper", tt.name, err)
		}
	}
}
