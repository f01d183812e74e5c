package keeper

import (
	"fmt"
	"time"

	"flipsol-keeper/internal/phase"
)

type Condition string

const (
	ConditionIdle              Condition = "idle"
	ConditionInFlight          Condition = "in_flight"
	ConditionNotInitialized    Condition = "not_initialized"
	ConditionWaitingFirstWager Condition = "waiting_first_wager"
	ConditionRoundNotVisible   Condition = "round_not_visible"
	ConditionCorruptTimestamp  Condition = "corrupt_timestamp"
	ConditionCorruptAccount    Condition = "corrupt_account"
	ConditionLedgerError       Condition = "ledger_error"
	ConditionSettled           Condition = "settled"
	ConditionSkippedNoWagers   Condition = "skipped_no_wagers"
	ConditionSettleDeferred    Condition = "settle_deferred"
	ConditionSettleFailed      Condition = "settle_failed"
	ConditionActive            Condition = "active"
)

type StatusConfig struct {
	CheckIntervalMS   int64 `json:"check_interval_ms"`
	RoundDurationMS   int64 `json:"round_duration_ms"`
	BettingWindowMS   int64 `json:"betting_window_ms"`
	DistributeDelayMS int64 `json:"distribute_delay_ms"`
	CorruptEndsAtMin  int64 `json:"corrupt_ends_at_min"`
}

// Status is an immutable snapshot; a new one is published after every tick
// and on Start/Stop.
type Status struct {
	IsRunning       bool         `json:"is_running"`
	LastActivity    string       `json:"last_activity"`
	Condition       Condition    `json:"condition"`
	LastCheckTS     int64        `json:"last_check_ts"`
	RoundsProcessed int64        `json:"rounds_processed"`
	RoundsClosed    int64        `json:"rounds_closed"`
	RecentErrors    []string     `json:"recent_errors"`
	LedgerRoundID   uint64       `json:"ledger_round_id"`
	LogicalRound    phase.Round  `json:"logical_round"`
	Config          StatusConfig `json:"config"`
}

// errorRing keeps the newest max error lines.
type errorRing struct {
	max     int
	entries []string
}

func newErrorRing(max int) *errorRing {
	if max <= 0 {
		max = 10
	}
	return &errorRing{max: max}
}

func (r *errorRing) add(now time.Time, msg string) {
	r.entries = append(r.entries, fmt.Sprintf("%s: %s", now.UTC().Format(time.RFC3339), msg))
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

func (r *errorRing) snapshot() []string {
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}
