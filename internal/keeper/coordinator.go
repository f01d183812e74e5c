package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/phase"
)

type Config struct {
	CheckInterval   time.Duration
	DistributeDelay time.Duration
	ReadTimeout     time.Duration
	SubmitTimeout   time.Duration
	ErrorHistory    int
	Clock           phase.Clock
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.DistributeDelay < 0 {
		c.DistributeDelay = 0
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 45 * time.Second
	}
	if c.ErrorHistory <= 0 {
		c.ErrorHistory = 10
	}
	return c
}

type TickResult struct {
	Condition  Condition         `json:"condition"`
	RoundID    uint64            `json:"round_id"`
	Activity   string            `json:"activity"`
	Skipped    bool              `json:"skipped"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
	Err        error             `json:"-"`
}

// Coordinator drives rounds on the ledger: each tick reads the current round
// and settles it once it has expired with a non-empty pot. Ticks never
// overlap; a tick that fires while another runs is dropped.
type Coordinator struct {
	cfg         Config
	ledger      Ledger
	settler     *Settler
	distributor *Distributor
	emitter     *events.Emitter
	rounds      *roundTracker
	now         func() time.Time

	inFlight atomic.Bool

	lifecycleMu sync.Mutex
	running     bool
	scheduler   *gocron.Scheduler
	runCtx      context.Context
	cancel      context.CancelFunc
	pending     sync.WaitGroup

	statusMu        sync.Mutex
	status          atomic.Pointer[Status]
	errors          *errorRing
	roundsProcessed int64
	roundsClosed    int64
}

func NewCoordinator(ledger Ledger, emitter *events.Emitter, distributor *Distributor, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	c := &Coordinator{
		cfg:         cfg,
		ledger:      ledger,
		settler:     NewSettler(ledger, cfg.SubmitTimeout, cfg.ReadTimeout),
		distributor: distributor,
		emitter:     emitter,
		rounds:      &roundTracker{emitter: emitter},
		now:         time.Now,
		errors:      newErrorRing(cfg.ErrorHistory),
	}
	c.status.Store(&Status{
		Condition:    ConditionIdle,
		LastActivity: "not started",
		RecentErrors: []string{},
		Config:       c.statusConfig(),
	})
	return c
}

// Start schedules ticks every CheckInterval, the first one immediately.
// Calling Start on a running coordinator is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.running {
		log.Warn().Msg("keeper already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(c.cfg.CheckInterval).SingletonMode().StartImmediately().Do(func() {
		c.Tick(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule keeper tick: %w", err)
	}
	c.scheduler = s
	c.runCtx = runCtx
	c.cancel = cancel
	c.running = true
	s.StartAsync()

	c.updateStatus(func(st *Status) {
		st.IsRunning = true
		st.LastActivity = "started"
	})
	log.Info().
		Dur("check_interval", c.cfg.CheckInterval).
		Dur("round_duration", c.cfg.Clock.RoundDuration).
		Dur("betting_window", c.cfg.Clock.BettingWindow).
		Msg("keeper started")
	return nil
}

// Stop cancels the schedule and waits for pending distributions to observe
// the cancellation.
func (c *Coordinator) Stop() {
	c.lifecycleMu.Lock()
	if !c.running {
		c.lifecycleMu.Unlock()
		log.Warn().Msg("keeper not running")
		return
	}
	c.cancel()
	s := c.scheduler
	c.running = false
	c.scheduler = nil
	c.lifecycleMu.Unlock()

	s.Stop()
	c.pending.Wait()
	c.updateStatus(func(st *Status) {
		st.IsRunning = false
		st.LastActivity = "stopped"
	})
	log.Info().Msg("keeper stopped")
}

func (c *Coordinator) IsRunning() bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.running
}

func (c *Coordinator) Status() Status {
	return *c.status.Load()
}

// Distribute runs the winnings distributor for roundID synchronously.
func (c *Coordinator) Distribute(ctx context.Context, roundID uint64) (*DistributionResult, error) {
	if c.distributor == nil {
		return nil, errors.New("distributor not configured")
	}
	return c.distributor.Distribute(ctx, roundID)
}

// Tick runs one reconciliation pass unless another is already in flight.
func (c *Coordinator) Tick(ctx context.Context) TickResult {
	if !c.inFlight.CompareAndSwap(false, true) {
		metricTicksSkipped.Add(1)
		log.Debug().Msg("keeper tick skipped, previous tick still running")
		return TickResult{Condition: ConditionInFlight, Skipped: true, Activity: "previous tick still running"}
	}
	defer c.inFlight.Store(false)

	now := c.now()
	metricTicks.Add(1)
	metricLastTickUnixSec.Set(now.Unix())

	res := c.reconcile(ctx, now)
	metricConditions.Add(string(res.Condition), 1)

	c.statusMu.Lock()
	if res.Err != nil {
		c.errors.add(now, fmt.Sprintf("%s: %v", res.Condition, res.Err))
	}
	next := *c.status.Load()
	next.Condition = res.Condition
	next.LastActivity = res.Activity
	next.LastCheckTS = now.UnixMilli()
	next.RoundsProcessed = c.roundsProcessed
	next.RoundsClosed = c.roundsClosed
	next.RecentErrors = c.errors.snapshot()
	next.LogicalRound = c.cfg.Clock.At(now)
	if res.RoundID > 0 {
		next.LedgerRoundID = res.RoundID
	}
	c.status.Store(&next)
	c.statusMu.Unlock()
	return res
}

func (c *Coordinator) reconcile(ctx context.Context, now time.Time) TickResult {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	gs, err := c.ledger.GlobalState(rctx)
	cancel()
	switch {
	case errors.Is(err, chain.ErrAccountNotFound):
		log.Warn().Msg("ledger program not initialized")
		return TickResult{Condition: ConditionNotInitialized, Activity: "ledger program not initialized"}
	case err != nil:
		return c.readFailure(0, "global state", err)
	}

	if gs.CurrentRound == 0 {
		log.Info().Msg("no round on ledger yet, waiting for first wager")
		return TickResult{Condition: ConditionWaitingFirstWager, Activity: "waiting for first wager"}
	}
	roundID := gs.CurrentRound
	c.rounds.observe(roundID, events.RoundStarted{RoundID: roundID, Source: "ledger"})

	rctx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
	rs, err := c.ledger.RoundState(rctx, roundID)
	cancel()
	switch {
	case errors.Is(err, chain.ErrAccountNotFound):
		log.Warn().Uint64("round_id", roundID).Msg("round account not visible yet")
		return TickResult{Condition: ConditionRoundNotVisible, RoundID: roundID, Activity: fmt.Sprintf("round %d not visible yet", roundID)}
	case err != nil:
		return c.readFailure(roundID, "round state", err)
	}

	c.statusMu.Lock()
	c.roundsProcessed++
	c.statusMu.Unlock()

	pot := rs.TotalPot()
	potSOL := flipsol.LamportsToSOL(pot).String()
	expired := rs.IsExpired(now)
	c.emitter.Emit(events.TypeRoundStatus, roundID, events.RoundStatus{
		RoundID:     roundID,
		HeadsTotal:  rs.HeadsTotal,
		TailsTotal:  rs.TailsTotal,
		TotalPot:    pot,
		TotalPotSOL: potSOL,
		EndsAt:      rs.EndsAt,
		Settled:     rs.Settled,
		WinningSide: rs.WinningSide.String(),
		Expired:     expired,
		TimeLeftMS:  max(rs.EndsAtTime().Sub(now).Milliseconds(), 0),
	})

	if !rs.HasValidEndsAt() {
		err := fmt.Errorf("round %d ends_at %d below %d", roundID, rs.EndsAt, flipsol.MinValidEndsAt)
		log.Error().Uint64("round_id", roundID).Int64("ends_at", rs.EndsAt).Msg("round has corrupt end timestamp, refusing to act")
		return TickResult{Condition: ConditionCorruptTimestamp, RoundID: roundID, Activity: fmt.Sprintf("round %d has corrupt end timestamp", roundID), Err: err}
	}

	switch {
	case rs.Settled:
		log.Debug().Uint64("round_id", roundID).Str("pot_sol", potSOL).Msg("round already settled")
		return TickResult{Condition: ConditionSettled, RoundID: roundID, Activity: fmt.Sprintf("round %d settled, pot=%s SOL", roundID, potSOL)}
	case expired && pot == 0:
		log.Info().Uint64("round_id", roundID).Msg("round expired without wagers, nothing to settle")
		return TickResult{Condition: ConditionSkippedNoWagers, RoundID: roundID, Activity: fmt.Sprintf("round %d expired with no wagers", roundID)}
	case expired:
		return c.settle(ctx, *rs, potSOL)
	default:
		left := rs.EndsAtTime().Sub(now).Truncate(time.Second)
		log.Debug().Uint64("round_id", roundID).Dur("time_left", left).Str("pot_sol", potSOL).Msg("round active")
		return TickResult{Condition: ConditionActive, RoundID: roundID, Activity: fmt.Sprintf("round %d active, time left = %s, pot=%s SOL", roundID, left, potSOL)}
	}
}

func (c *Coordinator) readFailure(roundID uint64, what string, err error) TickResult {
	if errors.Is(err, flipsol.ErrCorruptAccount) {
		log.Error().Err(err).Uint64("round_id", roundID).Str("account", what).Msg("undecodable ledger account")
		return TickResult{Condition: ConditionCorruptAccount, RoundID: roundID, Activity: fmt.Sprintf("%s undecodable", what), Err: err}
	}
	log.Warn().Err(err).Uint64("round_id", roundID).Str("account", what).Msg("ledger read failed")
	return TickResult{Condition: ConditionLedgerError, RoundID: roundID, Activity: fmt.Sprintf("reading %s failed", what), Err: err}
}

func (c *Coordinator) settle(ctx context.Context, rs flipsol.RoundState, potSOL string) TickResult {
	roundID := rs.RoundID
	res, err := c.settler.Settle(ctx, roundID)
	if err != nil {
		var se *SettlementError
		if errors.As(err, &se) && se.Class == ClassDependency {
			c.emitter.Emit(events.TypeSettlementDeferred, roundID, events.SettlementDeferred{
				RoundID: roundID,
				Class:   string(se.Class),
				Reason:  se.Err.Error(),
			})
			return TickResult{Condition: ConditionSettleDeferred, RoundID: roundID, Activity: fmt.Sprintf("round %d settlement deferred: missing dependency", roundID), Err: err}
		}
		return TickResult{Condition: ConditionSettleFailed, RoundID: roundID, Activity: fmt.Sprintf("round %d settlement failed", roundID), Err: err}
	}

	if res.Outcome == OutcomeSettled {
		c.statusMu.Lock()
		c.roundsClosed++
		c.statusMu.Unlock()
	}

	settled := rs
	rctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	if fresh, err := c.ledger.RoundState(rctx, roundID); err == nil && fresh.Settled {
		settled = *fresh
	} else {
		log.Warn().Err(err).Uint64("round_id", roundID).Msg("settled round not visible yet, winning side unknown")
		settled.WinningSide = flipsol.SideUnset
	}
	cancel()
	if c.distributor != nil {
		c.distributor.recordSettlement(ctx, settled, 0, res.Signature)
	}

	c.emitter.Emit(events.TypeRoundSettled, roundID, events.RoundSettled{
		RoundID:     roundID,
		Signature:   sigString(res.Signature),
		Outcome:     string(res.Outcome),
		WinningSide: settled.WinningSide.String(),
		HeadsTotal:  settled.HeadsTotal,
		TailsTotal:  settled.TailsTotal,
		TotalPot:    settled.TotalPot(),
		TotalPotSOL: potSOL,
	})
	c.scheduleDistribution(roundID, res.Signature)

	return TickResult{
		Condition:  ConditionSettled,
		RoundID:    roundID,
		Activity:   fmt.Sprintf("round %d closed (%s), pot=%s SOL", roundID, res.Outcome, potSOL),
		Settlement: res,
	}
}

// scheduleDistribution runs the distributor after DistributeDelay, detached
// from the tick.
func (c *Coordinator) scheduleDistribution(roundID uint64, settleSig chain.Signature) {
	if c.distributor == nil {
		return
	}
	c.lifecycleMu.Lock()
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		c.lifecycleMu.Unlock()
		log.Warn().Uint64("round_id", roundID).Msg("keeper stopped, distribution not scheduled")
		return
	}
	c.pending.Add(1)
	c.lifecycleMu.Unlock()

	time.AfterFunc(c.cfg.DistributeDelay, func() {
		defer c.pending.Done()
		if ctx.Err() != nil {
			log.Warn().Uint64("round_id", roundID).Msg("keeper stopping, distribution skipped")
			return
		}
		if _, err := c.distributor.distribute(ctx, roundID, settleSig); err != nil {
			log.Error().Err(err).Uint64("round_id", roundID).Msg("winnings distribution failed")
		}
	})
}

func (c *Coordinator) updateStatus(mutate func(*Status)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	next := *c.status.Load()
	mutate(&next)
	c.status.Store(&next)
}

func (c *Coordinator) statusConfig() StatusConfig {
	clock := c.cfg.Clock
	return StatusConfig{
		CheckIntervalMS:   c.cfg.CheckInterval.Milliseconds(),
		RoundDurationMS:   clock.RoundDuration.Milliseconds(),
		BettingWindowMS:   clock.BettingWindow.Milliseconds(),
		DistributeDelayMS: c.cfg.DistributeDelay.Milliseconds(),
		CorruptEndsAtMin:  flipsol.MinValidEndsAt,
	}
}

// roundTracker emits round_started once per newly observed ledger round,
// whichever of the tick loop or the opener sees it first.
type roundTracker struct {
	last    atomic.Uint64
	emitter *events.Emitter
}

func (t *roundTracker) observe(roundID uint64, data events.RoundStarted) bool {
	for {
		prev := t.last.Load()
		if roundID <= prev {
			return false
		}
		if t.last.CompareAndSwap(prev, roundID) {
			metricRoundsStarted.Add(1)
			log.Info().Uint64("round_id", roundID).Str("source", data.Source).Msg("new round observed")
			t.emitter.Emit(events.TypeRoundStarted, roundID, data)
			return true
		}
	}
}
