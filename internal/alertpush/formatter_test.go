package alertpush

import (
	"strings"
	"testing"

	"flipsol-keeper/internal/alertpush/platforms"
	"flipsol-keeper/internal/events"
)

func TestFormatRoundSettled(t *testing.T) {
	msg, ok := Format(events.Event{
		Type:     events.TypeRoundSettled,
		RoundID:  7,
		ServerTS: 1_700_000_000_000,
		Data:     events.RoundSettled{RoundID: 7, Outcome: "settled", WinningSide: "heads", TotalPotSOL: "4"},
	})
	if !ok {
		t.Fatal("round_settled should format")
	}
	if msg.Title != "Round 7 settled" || msg.Color != platforms.ColorOK || msg.Timestamp != "2023-11-14T22:13:20Z" {
		t.Fatalf("msg = %+v", msg)
	}
	if !strings.Contains(msg.Description, "4 SOL") {
		t.Fatalf("description = %q", msg.Description)
	}
}

func TestFormatSettlementDeferredTrimsReason(t *testing.T) {
	msg, ok := Format(events.Event{
		Type:    events.TypeSettlementDeferred,
		RoundID: 8,
		Data:    events.SettlementDeferred{RoundID: 8, Class: "dependency", Reason: strings.Repeat("x", 400)},
	})
	if !ok || msg.Color != platforms.ColorCritical {
		t.Fatalf("msg = %+v ok = %v", msg, ok)
	}
	reason := msg.Fields[len(msg.Fields)-1].Value
	if len(reason) != reasonLimit || !strings.HasSuffix(reason, "...") {
		t.Fatalf("reason length = %d", len(reason))
	}
}

func TestFormatSkipsQuietEvents(t *testing.T) {
	quiet := []events.Event{
		{Type: events.TypeRoundStatus, Data: events.RoundStatus{}},
		{Type: events.TypeRoundStarted, Data: events.RoundStarted{}},
		{Type: events.TypeWinningsDistributed, Data: events.WinningsDistributed{Winners: 2, Succeeded: 2}},
	}
	for _, ev := range quiet {
		if _, ok := Format(ev); ok {
			t.Fatalf("%s should not alert", ev.Type)
		}
	}
	if _, ok := Format(events.Event{Type: events.TypeWinningsDistributed, Data: events.WinningsDistributed{Winners: 2, Failed: 1}}); !ok {
		t.Fatal("failed credits should alert")
	}
}
