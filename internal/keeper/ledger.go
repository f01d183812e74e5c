package keeper

import (
	"context"
	"time"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/store"
)

// Ledger is everything the keeper reads from and submits to the program.
// *flipsol.Program implements it.
type Ledger interface {
	GlobalState(ctx context.Context) (*flipsol.GlobalState, error)
	RoundState(ctx context.Context, roundID uint64) (*flipsol.RoundState, error)
	RoundBets(ctx context.Context, roundID uint64) ([]flipsol.UserBet, error)

	CloseRound(ctx context.Context, roundID uint64) (chain.Signature, error)
	CreditWinner(ctx context.Context, roundID uint64, user chain.PublicKey) (chain.Signature, error)
	StartRound(ctx context.Context, roundID uint64, duration time.Duration) (chain.Signature, error)

	SettlementAccounts(ctx context.Context, roundID uint64) ([]flipsol.AccountCheck, error)
}

// Recorder mirrors settlements and payouts into the analytics store. Writes
// are best effort: failures are logged and never affect the round.
type Recorder interface {
	RecordSettlement(ctx context.Context, s store.RoundSettlement) error
	RecordPayouts(ctx context.Context, payouts []store.Payout) error
}

type noopRecorder struct{}

func (noopRecorder) RecordSettlement(context.Context, store.RoundSettlement) error { return nil }

func (noopRecorder) RecordPayouts(context.Context, []store.Payout) error { return nil }
