package httptransport

import (
	"context"
	"time"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/keeper"
	"flipsol-keeper/internal/phase"
	"flipsol-keeper/internal/store"
)

type Keeper interface {
	Status() keeper.Status
	Tick(ctx context.Context) keeper.TickResult
	Distribute(ctx context.Context, roundID uint64) (*keeper.DistributionResult, error)
}

type RoundOpener interface {
	Open(ctx context.Context, duration time.Duration) (*keeper.OpenResult, error)
}

type NodeProbe interface {
	Health(ctx context.Context) chain.Health
}

// SettlementStore is the read side of the analytics mirror.
type SettlementStore interface {
	Ping(ctx context.Context) error
	GetRoundSettlement(ctx context.Context, roundID uint64) (*store.RoundSettlement, error)
	ListRoundPayouts(ctx context.Context, roundID uint64) ([]store.Payout, error)
}

// Deps wires the router. Store may be nil when no mirror is configured.
type Deps struct {
	Keeper      Keeper
	Opener      RoundOpener
	Node        NodeProbe
	Store       SettlementStore
	Events      *events.Buffer
	Clock       phase.Clock
	AdminAPIKey string
	// DefaultRoundDuration applies when an open request names no duration.
	DefaultRoundDuration time.Duration
}
