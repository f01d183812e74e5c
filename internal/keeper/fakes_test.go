package keeper

import (
	"context"
	"sync"
	"time"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/store"
)

var testNow = time.Unix(1_700_000_100, 0)

type fakeLedger struct {
	mu sync.Mutex

	global    *flipsol.GlobalState
	globalErr error
	// globalGate, when set, blocks GlobalState until closed.
	globalGate chan struct{}

	rounds   map[uint64]*flipsol.RoundState
	roundErr error

	bets    []flipsol.UserBet
	betsErr error

	closeErr    error
	closeCalls  int
	settleAs    flipsol.Side
	creditErrs  map[chain.PublicKey]error
	creditPanic map[chain.PublicKey]bool
	credited    []chain.PublicKey
	startErr    error
	started     []uint64
	accounts    []flipsol.AccountCheck
}

func newFakeLedger(currentRound uint64) *fakeLedger {
	return &fakeLedger{
		global:      &flipsol.GlobalState{CurrentRound: currentRound, RakeBps: 200, JackpotBps: 100},
		rounds:      map[uint64]*flipsol.RoundState{},
		creditErrs:  map[chain.PublicKey]error{},
		creditPanic: map[chain.PublicKey]bool{},
	}
}

func (f *fakeLedger) setRound(rs flipsol.RoundState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds[rs.RoundID] = &rs
}

func (f *fakeLedger) GlobalState(ctx context.Context) (*flipsol.GlobalState, error) {
	if f.globalGate != nil {
		select {
		case <-f.globalGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.globalErr != nil {
		return nil, f.globalErr
	}
	gs := *f.global
	return &gs, nil
}

func (f *fakeLedger) RoundState(_ context.Context, roundID uint64) (*flipsol.RoundState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roundErr != nil {
		return nil, f.roundErr
	}
	rs, ok := f.rounds[roundID]
	if !ok {
		return nil, chain.ErrAccountNotFound
	}
	cp := *rs
	return &cp, nil
}

func (f *fakeLedger) RoundBets(_ context.Context, roundID uint64) ([]flipsol.UserBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.betsErr != nil {
		return nil, f.betsErr
	}
	var out []flipsol.UserBet
	for _, b := range f.bets {
		if b.RoundID == roundID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) CloseRound(_ context.Context, roundID uint64) (chain.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closeErr != nil {
		return chain.Signature{}, f.closeErr
	}
	if rs, ok := f.rounds[roundID]; ok {
		rs.Settled = true
		rs.WinningSide = f.settleAs
	}
	return chain.Signature{0xc1, byte(roundID)}, nil
}

func (f *fakeLedger) CreditWinner(_ context.Context, roundID uint64, user chain.PublicKey) (chain.Signature, error) {
	f.mu.Lock()
	panics := f.creditPanic[user]
	err := f.creditErrs[user]
	f.mu.Unlock()
	if panics {
		panic("credit exploded")
	}
	if err != nil {
		return chain.Signature{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credited = append(f.credited, user)
	for i := range f.bets {
		if f.bets[i].User == user && f.bets[i].RoundID == roundID {
			f.bets[i].Claimed = true
		}
	}
	return chain.Signature{0xd1, user[0]}, nil
}

func (f *fakeLedger) StartRound(_ context.Context, roundID uint64, duration time.Duration) (chain.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return chain.Signature{}, f.startErr
	}
	f.started = append(f.started, roundID)
	f.global.CurrentRound = roundID
	f.rounds[roundID] = &flipsol.RoundState{RoundID: roundID, EndsAt: testNow.Add(duration).Unix(), WinningSide: flipsol.SideUnset}
	return chain.Signature{0xe1, byte(roundID)}, nil
}

func (f *fakeLedger) SettlementAccounts(context.Context, uint64) ([]flipsol.AccountCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, nil
}

func (f *fakeLedger) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeRecorder struct {
	mu          sync.Mutex
	settlements []store.RoundSettlement
	payouts     []store.Payout
}

func (r *fakeRecorder) RecordSettlement(_ context.Context, s store.RoundSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements = append(r.settlements, s)
	return nil
}

func (r *fakeRecorder) RecordPayouts(_ context.Context, p []store.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, p...)
	return nil
}

// eventLog captures emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) OnEvent(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t string) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	ledger   *fakeLedger
	recorder *fakeRecorder
	events   *eventLog
	keeper   *Coordinator
}

func newHarness(ledger *fakeLedger) *harness {
	emitter := events.NewEmitter()
	log := &eventLog{}
	emitter.AddListener(log)
	rec := &fakeRecorder{}
	dist := NewDistributor(ledger, rec, emitter, DistributorConfig{Workers: 2, CreditTimeout: time.Second, ReadTimeout: time.Second})
	c := NewCoordinator(ledger, emitter, dist, Config{
		CheckInterval:   time.Hour,
		DistributeDelay: time.Millisecond,
		ReadTimeout:     time.Second,
		SubmitTimeout:   time.Second,
		ErrorHistory:    3,
	})
	c.now = func() time.Time { return testNow }
	return &harness{ledger: ledger, recorder: rec, events: log, keeper: c}
}

func user(b byte) chain.PublicKey {
	return chain.PublicKey{b, b, b}
}
