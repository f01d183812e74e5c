package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
)

var (
	ErrNotInitialized = errors.New("ledger program not initialized")
	ErrRoundOpen      = errors.New("current round is not settled")
)

type OpenResult struct {
	RoundID   uint64          `json:"round_id"`
	Signature chain.Signature `json:"signature"`
	Duration  time.Duration   `json:"duration"`
	EndsAt    int64           `json:"ends_at,omitempty"`
}

// Opener starts the next ledger round on operator request. It refuses while
// the current round exists and is unsettled.
type Opener struct {
	mu            sync.Mutex
	ledger        Ledger
	rounds        *roundTracker
	readTimeout   time.Duration
	submitTimeout time.Duration
	now           func() time.Time
}

// NewOpener shares c's round tracking so a round opened here is announced once.
func NewOpener(c *Coordinator) *Opener {
	return &Opener{
		ledger:        c.ledger,
		rounds:        c.rounds,
		readTimeout:   c.cfg.ReadTimeout,
		submitTimeout: c.cfg.SubmitTimeout,
		now:           time.Now,
	}
}

func (o *Opener) Open(ctx context.Context, duration time.Duration) (*OpenResult, error) {
	if duration < time.Second || duration > flipsol.MaxRoundDuration {
		return nil, flipsol.ErrInvalidDuration
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, o.readTimeout)
	defer cancel()
	gs, err := o.ledger.GlobalState(rctx)
	if errors.Is(err, chain.ErrAccountNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("read global state: %w", err)
	}

	if gs.CurrentRound > 0 {
		rs, err := o.ledger.RoundState(rctx, gs.CurrentRound)
		switch {
		case errors.Is(err, chain.ErrAccountNotFound):
			log.Warn().Uint64("round_id", gs.CurrentRound).Msg("current round account missing, opening next round anyway")
		case err != nil:
			return nil, fmt.Errorf("read round %d: %w", gs.CurrentRound, err)
		case !rs.Settled:
			return nil, fmt.Errorf("%w: round %d", ErrRoundOpen, gs.CurrentRound)
		}
	}

	next := gs.CurrentRound + 1
	sctx, scancel := context.WithTimeout(ctx, o.submitTimeout)
	defer scancel()
	started := o.now()
	sig, err := o.ledger.StartRound(sctx, next, duration)
	if err != nil {
		log.Error().Err(err).Uint64("round_id", next).Strs("program_logs", chain.ErrorLogs(err)).Msg("start round failed")
		return nil, fmt.Errorf("start round %d: %w", next, err)
	}

	res := &OpenResult{
		RoundID:   next,
		Signature: sig,
		Duration:  duration,
		EndsAt:    started.Add(duration).Unix(),
	}
	o.rounds.observe(next, events.RoundStarted{
		RoundID:   next,
		EndsAt:    res.EndsAt,
		Signature: sig.String(),
		Source:    "operator",
	})
	log.Info().Uint64("round_id", next).Str("signature", sig.String()).Dur("duration", duration).Msg("round opened")
	return res, nil
}
