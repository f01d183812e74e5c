package keeper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/events"
	"flipsol-keeper/internal/flipsol"
)

func TestOpenRefusesUnsettledRound(t *testing.T) {
	ledger := newFakeLedger(3)
	ledger.setRound(flipsol.RoundState{RoundID: 3, HeadsTotal: 1, EndsAt: testNow.Add(time.Minute).Unix()})
	h := newHarness(ledger)
	opener := NewOpener(h.keeper)

	if _, err := opener.Open(context.Background(), time.Minute); !errors.Is(err, ErrRoundOpen) {
		t.Fatalf("Open() error = %v, want ErrRoundOpen", err)
	}
	if len(ledger.started) != 0 {
		t.Fatal("no round should have been started")
	}
}

func TestOpenAfterSettlementAnnouncesOnce(t *testing.T) {
	ledger := newFakeLedger(3)
	ledger.setRound(settledRound(3, flipsol.SideHeads, 1, 0))
	h := newHarness(ledger)
	opener := NewOpener(h.keeper)
	opener.now = func() time.Time { return testNow }

	res, err := opener.Open(context.Background(), 90*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if res.RoundID != 4 || res.EndsAt != testNow.Add(90*time.Second).Unix() || res.Signature.IsZero() {
		t.Fatalf("Open() = %+v", res)
	}

	// The next tick sees round 4 on the ledger but must not announce it again.
	if tick := h.keeper.Tick(context.Background()); tick.Condition != ConditionActive || tick.RoundID != 4 {
		t.Fatalf("tick after open = %+v", tick)
	}
	started := h.events.ofType(events.TypeRoundStarted)
	if len(started) != 1 {
		t.Fatalf("round_started events = %d, want 1", len(started))
	}
	if p := started[0].Data.(events.RoundStarted); p.Source != "operator" || p.RoundID != 4 {
		t.Fatalf("round_started payload = %+v", p)
	}
}

func TestOpenFirstRound(t *testing.T) {
	ledger := newFakeLedger(0)
	h := newHarness(ledger)
	res, err := NewOpener(h.keeper).Open(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if res.RoundID != 1 {
		t.Fatalf("round = %d, want 1", res.RoundID)
	}
}

func TestOpenErrors(t *testing.T) {
	h := newHarness(newFakeLedger(0))
	opener := NewOpener(h.keeper)
	for _, d := range []time.Duration{0, 500 * time.Millisecond, 25 * time.Hour} {
		if _, err := opener.Open(context.Background(), d); !errors.Is(err, flipsol.ErrInvalidDuration) {
			t.Fatalf("Open(%s) error = %v, want ErrInvalidDuration", d, err)
		}
	}

	ledger := newFakeLedger(0)
	ledger.globalErr = fmt.Errorf("read: %w", chain.ErrAccountNotFound)
	if _, err := NewOpener(newHarness(ledger).keeper).Open(context.Background(), time.Minute); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open() error = %v, want ErrNotInitialized", err)
	}

	ledger = newFakeLedger(0)
	ledger.startErr = &chain.RPCError{Code: -32002, Message: "Unauthorized"}
	if _, err := NewOpener(newHarness(ledger).keeper).Open(context.Background(), time.Minute); err == nil {
		t.Fatal("Open() should surface start_round failure")
	}
}
