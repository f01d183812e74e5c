package alertpush

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"flipsol-keeper/internal/config"
)

// ConfigFromKeeper reads targets from ALERT_PUSH_CONFIG_PATH when set,
// otherwise from ALERT_PUSH_CONFIG_JSON.
func ConfigFromKeeper(cfg config.KeeperConfig) (Config, error) {
	out := Config{
		Enabled:   cfg.AlertPushEnabled,
		Workers:   cfg.AlertPushWorkers,
		RetryMax:  cfg.AlertPushRetryMax,
		RetryBase: time.Duration(cfg.AlertPushRetryBaseMS) * time.Millisecond,
	}.withDefaults()
	if !out.Enabled {
		return out, nil
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargetsJSON(cfg config.KeeperConfig) (string, error) {
	if path := strings.TrimSpace(cfg.AlertPushConfigPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read alert push config %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.AlertPushConfigJSON), nil
}

// parseTargetsJSON drops disabled targets and targets without an endpoint.
func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse alert push targets: %w", err)
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
		t.Endpoint = strings.TrimSpace(t.Endpoint)
		if !t.Enabled || t.Endpoint == "" {
			continue
		}
		for i := range t.EventAllowlist {
			t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(t.EventAllowlist[i]))
		}
		out = append(out, t)
	}
	return out, nil
}

func (t Target) allows(eventType string) bool {
	if len(t.EventAllowlist) == 0 {
		return true
	}
	for _, v := range t.EventAllowlist {
		if v == eventType {
			return true
		}
	}
	return false
}
