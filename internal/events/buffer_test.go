package events

import "testing"

func TestBufferReplayAfter(t *testing.T) {
	e := NewEmitter()
	buf := NewBuffer(3)
	e.AddListener(buf)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, e.Emit(TypeRoundStatus, uint64(i), nil).ID)
	}

	all := buf.ReplayAfter("")
	if len(all) != 3 || all[0].ID != ids[2] {
		t.Fatalf("replay all = %+v", all)
	}
	after := buf.ReplayAfter(ids[3])
	if len(after) != 1 || after[0].ID != ids[4] {
		t.Fatalf("replay after = %+v", after)
	}
	if got := buf.ReplayAfter("not-an-id"); len(got) != 3 {
		t.Fatalf("replay with bad id = %d events, want 3", len(got))
	}
}

func TestBufferSubscribeAndClose(t *testing.T) {
	buf := NewBuffer(10)
	ch := buf.Subscribe()
	buf.OnEvent(Event{ID: "1", Type: TypeRoundSettled})

	select {
	case ev := <-ch:
		if ev.Type != TypeRoundSettled {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("expected buffered event")
	}

	latest, ok := buf.Latest(TypeRoundSettled)
	if !ok || latest.ID != "1" {
		t.Fatalf("Latest() = %+v, %v", latest, ok)
	}

	buf.Close()
	if _, open := <-ch; open {
		t.Fatal("expected subscriber channel closed")
	}
	buf.OnEvent(Event{ID: "2"})
	if got := buf.ReplayAfter(""); len(got) != 1 {
		t.Fatalf("buffer accepted events after close: %d", len(got))
	}
}

func TestBufferDropsForSlowSubscriber(t *testing.T) {
	buf := NewBuffer(100)
	ch := buf.Subscribe()
	for i := 0; i < 40; i++ {
		buf.OnEvent(Event{Type: TypeRoundStatus})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("subscriber holds %d events, want %d", len(ch), cap(ch))
	}
	buf.Unsubscribe(ch)
}
