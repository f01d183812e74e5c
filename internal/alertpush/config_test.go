package alertpush

import (
	"os"
	"path/filepath"
	"testing"

	"flipsol-keeper/internal/config"
)

func TestConfigFromKeeperDisabled(t *testing.T) {
	cfg, err := ConfigFromKeeper(config.KeeperConfig{AlertPushConfigJSON: "not json"})
	if err != nil {
		t.Fatalf("disabled config should not parse targets: %v", err)
	}
	if cfg.Enabled || len(cfg.Targets) != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfigFromKeeperJSON(t *testing.T) {
	cfg, err := ConfigFromKeeper(config.KeeperConfig{
		AlertPushEnabled:     true,
		AlertPushWorkers:     3,
		AlertPushRetryMax:    1,
		AlertPushRetryBaseMS: 50,
		AlertPushConfigJSON: `[
			{"platform":" Discord ","endpoint":"https://d.example/hook","enabled":true,"event_allowlist":[" Settlement_Deferred "]},
			{"platform":"feishu","endpoint":"","enabled":true},
			{"platform":"feishu","endpoint":"https://f.example/hook","enabled":false}
		]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromKeeper() error = %v", err)
	}
	if cfg.Workers != 3 || cfg.RetryMax != 1 || cfg.RetryBase.Milliseconds() != 50 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("targets = %+v, want one", cfg.Targets)
	}
	target := cfg.Targets[0]
	if target.Platform != "discord" || !target.allows("settlement_deferred") || target.allows("round_settled") {
		t.Fatalf("target = %+v", target)
	}
}

func TestConfigFromKeeperPathWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"feishu","endpoint":"https://f.example","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	cfg, err := ConfigFromKeeper(config.KeeperConfig{
		AlertPushEnabled:    true,
		AlertPushConfigPath: path,
		AlertPushConfigJSON: `[]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromKeeper() error = %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Platform != "feishu" {
		t.Fatalf("targets = %+v", cfg.Targets)
	}

	if _, err := ConfigFromKeeper(config.KeeperConfig{AlertPushEnabled: true, AlertPushConfigPath: path + ".missing"}); err == nil {
		t.Fatal("missing config file should fail")
	}
	if _, err := ConfigFromKeeper(config.KeeperConfig{AlertPushEnabled: true, AlertPushConfigJSON: "{"}); err == nil {
		t.Fatal("invalid JSON should fail")
	}
}
