package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/store"
)

var ErrRoundNotSettled = errors.New("round not settled")

type DistributorConfig struct {
	Workers       int
	CreditTimeout time.Duration
	ReadTimeout   time.Duration
}

type CreditResult struct {
	User      chain.PublicKey `json:"user"`
	Amount    uint64          `json:"amount"`
	Quote     uint64          `json:"quote"`
	Signature chain.Signature `json:"signature"`
	Error     string          `json:"error,omitempty"`
}

type DistributionResult struct {
	RoundID   uint64         `json:"round_id"`
	Winners   int            `json:"winners"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Credits   []CreditResult `json:"credits"`
}

// Distributor credits every unclaimed winning bet of a settled round. Each
// credit is its own transaction; one failing never affects the others.
type Distributor struct {
	ledger   Ledger
	recorder Recorder
	emitter  *events.Emitter
	cfg      DistributorConfig
}

func NewDistributor(ledger Ledger, recorder Recorder, emitter *events.Emitter, cfg DistributorConfig) *Distributor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CreditTimeout <= 0 {
		cfg.CreditTimeout = 20 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Distributor{ledger: ledger, recorder: recorder, emitter: emitter, cfg: cfg}
}

// Distribute is safe to call repeatedly for the same round: claimed bets are
// skipped.
func (d *Distributor) Distribute(ctx context.Context, roundID uint64) (*DistributionResult, error) {
	return d.distribute(ctx, roundID, chain.Signature{})
}

func (d *Distributor) distribute(ctx context.Context, roundID uint64, settleSig chain.Signature) (*DistributionResult, error) {
	rctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	rs, err := d.ledger.RoundState(rctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("read round %d: %w", roundID, err)
	}
	if !rs.Settled {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotSettled, roundID)
	}
	gs, err := d.ledger.GlobalState(rctx)
	if err != nil {
		return nil, fmt.Errorf("read global state: %w", err)
	}
	bets, err := d.ledger.RoundBets(rctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("list bets for round %d: %w", roundID, err)
	}

	d.recordSettlement(ctx, *rs, len(bets), settleSig)

	res := &DistributionResult{RoundID: roundID}
	var winners []flipsol.UserBet
	for _, bet := range bets {
		if bet.RoundID != roundID || bet.Side != rs.WinningSide {
			continue
		}
		res.Winners++
		if bet.Claimed {
			res.Skipped++
			continue
		}
		winners = append(winners, bet)
	}

	if len(winners) > 0 {
		res.Credits = d.creditAll(ctx, *gs, *rs, winners)
	}
	var paid uint64
	payouts := make([]store.Payout, 0, len(res.Credits))
	for _, cr := range res.Credits {
		if cr.Error == "" {
			res.Succeeded++
			paid += cr.Quote
		} else {
			res.Failed++
		}
		payouts = append(payouts, store.Payout{
			RoundID:   roundID,
			User:      cr.User.String(),
			Amount:    cr.Amount,
			Payout:    cr.Quote,
			Signature: sigString(cr.Signature),
			Error:     cr.Error,
		})
	}
	metricCredits.Add("succeeded", int64(res.Succeeded))
	metricCredits.Add("failed", int64(res.Failed))
	metricCredits.Add("skipped", int64(res.Skipped))

	if len(payouts) > 0 {
		d.record(ctx, func(ctx context.Context) error { return d.recorder.RecordPayouts(ctx, payouts) })
	}

	log.Info().
		Uint64("round_id", roundID).
		Str("winning_side", rs.WinningSide.String()).
		Int("winners", res.Winners).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("winnings distribution complete")

	if d.emitter != nil {
		d.emitter.Emit(events.TypeWinningsDistributed, roundID, events.WinningsDistributed{
			RoundID:   roundID,
			Winners:   res.Winners,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
			Skipped:   res.Skipped,
			PaidOut:   paid,
		})
	}
	return res, nil
}

func (d *Distributor) creditAll(ctx context.Context, gs flipsol.GlobalState, rs flipsol.RoundState, winners []flipsol.UserBet) []CreditResult {
	results := make(chan CreditResult, len(winners))
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for _, bet := range winners {
		g.Go(func() error {
			results <- d.credit(ctx, gs, rs, bet)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]CreditResult, 0, len(winners))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (d *Distributor) credit(ctx context.Context, gs flipsol.GlobalState, rs flipsol.RoundState, bet flipsol.UserBet) (res CreditResult) {
	res = CreditResult{User: bet.User, Amount: bet.Amount, Quote: flipsol.QuotePayout(gs, rs, bet)}
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Interface("panic", r).Uint64("round_id", rs.RoundID).Str("user", bet.User.String()).Msg("credit worker panicked")
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, d.cfg.CreditTimeout)
	defer cancel()
	sig, err := d.ledger.CreditWinner(cctx, rs.RoundID, bet.User)
	res.Signature = sig
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Uint64("round_id", rs.RoundID).Str("user", bet.User.String()).Msg("credit winner failed")
		return res
	}
	log.Debug().Uint64("round_id", rs.RoundID).Str("user", bet.User.String()).Str("signature", sig.String()).Msg("winner credited")
	return res
}

// recordSettlement mirrors the round summary. participants is 0 when the bet
// scan has not run yet; the store keeps the larger count.
func (d *Distributor) recordSettlement(ctx context.Context, rs flipsol.RoundState, participants int, settleSig chain.Signature) {
	d.record(ctx, func(ctx context.Context) error {
		return d.recorder.RecordSettlement(ctx, store.RoundSettlement{
			RoundID:          rs.RoundID,
			WinningSide:      rs.WinningSide.String(),
			HeadsTotal:       rs.HeadsTotal,
			TailsTotal:       rs.TailsTotal,
			TotalPot:         rs.TotalPot(),
			ParticipantCount: participants,
			Signature:        sigString(settleSig),
		})
	})
}

func (d *Distributor) record(ctx context.Context, write func(context.Context) error) {
	wctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()
	if err := write(wctx); err != nil {
		metricRecorderErrors.Add(1)
		log.Warn().Err(err).Msg("analytics mirror write failed")
	}
}

func sigString(sig chain.Signature) string {
	if sig.IsZero() {
		return ""
	}
	return sig.String()
}
