package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type KeeperConfig struct {
	RPCURL     string `env:"RPC_URL" envDefault:"https://api.devnet.solana.com"`
	ProgramID  string `env:"PROGRAM_ID,required,notEmpty"`
	Commitment string `env:"COMMITMENT" envDefault:"confirmed"`

	// AuthorityKey is the authority keypair as a JSON byte array; AuthorityKeyPath
	// points at a keypair file in the same format.
	AuthorityKey     string `env:"CRON_AUTHORITY_PRIVATE_KEY"`
	AuthorityKeyPath string `env:"CRON_AUTHORITY_KEYPAIR_PATH"`

	CheckInterval     time.Duration `env:"CHECK_INTERVAL" envDefault:"30s"`
	RoundDuration     time.Duration `env:"ROUND_DURATION" envDefault:"60s"`
	BettingWindow     time.Duration `env:"BETTING_WINDOW" envDefault:"60s"`
	RoundOpenDuration time.Duration `env:"ROUND_OPEN_DURATION" envDefault:"60s"`
	DistributeDelay   time.Duration `env:"DISTRIBUTE_DELAY" envDefault:"3s"`
	RPCTimeout        time.Duration `env:"RPC_TIMEOUT" envDefault:"10s"`
	ConfirmTimeout    time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"45s"`

	DistributeWorkers int           `env:"DISTRIBUTE_WORKERS" envDefault:"4"`
	CreditTimeout     time.Duration `env:"CREDIT_TIMEOUT" envDefault:"20s"`
	ErrorHistory      int           `env:"ERROR_HISTORY" envDefault:"10"`

	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey     string `env:"ADMIN_API_KEY"`
	EventBufferSize int    `env:"EVENT_BUFFER_SIZE" envDefault:"500"`

	PostgresDSN  string `env:"POSTGRES_DSN"`
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"flipsol:events"`

	AlertPushEnabled     bool   `env:"ALERT_PUSH_ENABLED" envDefault:"false"`
	AlertPushConfigPath  string `env:"ALERT_PUSH_CONFIG_PATH"`
	AlertPushConfigJSON  string `env:"ALERT_PUSH_CONFIG_JSON"`
	AlertPushWorkers     int    `env:"ALERT_PUSH_WORKERS" envDefault:"2"`
	AlertPushRetryMax    int    `env:"ALERT_PUSH_RETRY_MAX" envDefault:"3"`
	AlertPushRetryBaseMS int    `env:"ALERT_PUSH_RETRY_BASE_MS" envDefault:"500"`
}

var (
	ErrMissingAuthority = errors.New("authority key not configured: set CRON_AUTHORITY_PRIVATE_KEY or CRON_AUTHORITY_KEYPAIR_PATH")
	ErrInvalidKeeper    = errors.New("invalid keeper config")
)

func LoadKeeper() (KeeperConfig, error) {
	var cfg KeeperConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// Validate rejects configuration the keeper cannot run with.
func (c KeeperConfig) Validate() error {
	if strings.TrimSpace(c.AuthorityKey) == "" && strings.TrimSpace(c.AuthorityKeyPath) == "" {
		return ErrMissingAuthority
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("%w: unknown commitment %q", ErrInvalidKeeper, c.Commitment)
	}
	positive := map[string]time.Duration{
		"CHECK_INTERVAL":      c.CheckInterval,
		"ROUND_DURATION":      c.RoundDuration,
		"BETTING_WINDOW":      c.BettingWindow,
		"ROUND_OPEN_DURATION": c.RoundOpenDuration,
		"RPC_TIMEOUT":         c.RPCTimeout,
		"CONFIRM_TIMEOUT":     c.ConfirmTimeout,
		"CREDIT_TIMEOUT":      c.CreditTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidKeeper, name)
		}
	}
	for name, d := range map[string]time.Duration{"ROUND_DURATION": c.RoundDuration, "BETTING_WINDOW": c.BettingWindow} {
		if d < time.Millisecond {
			return fmt.Errorf("%w: %s must be at least 1ms", ErrInvalidKeeper, name)
		}
	}
	if c.BettingWindow > c.RoundDuration {
		return fmt.Errorf("%w: BETTING_WINDOW %s exceeds ROUND_DURATION %s", ErrInvalidKeeper, c.BettingWindow, c.RoundDuration)
	}
	if c.DistributeDelay < 0 {
		return fmt.Errorf("%w: DISTRIBUTE_DELAY must not be negative", ErrInvalidKeeper)
	}
	if c.DistributeWorkers <= 0 {
		return fmt.Errorf("%w: DISTRIBUTE_WORKERS must be positive", ErrInvalidKeeper)
	}
	return nil
}
