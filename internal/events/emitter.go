package events

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const (
	TypeRoundStarted        = "round_started"
	TypeRoundSettled        = "round_settled"
	TypeRoundStatus         = "round_status"
	TypeSettlementDeferred  = "settlement_deferred"
	TypeWinningsDistributed = "winnings_distributed"
)

// Event ids are ULIDs, so lexical order is emission order within a process.
type Event struct {
	ID       string `json:"event_id"`
	Type     string `json:"event"`
	RoundID  uint64 `json:"round_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }

var (
	idEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	idEntropyMu sync.Mutex
)

func newEventID(now time.Time) string {
	idEntropyMu.Lock()
	defer idEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

// Emitter delivers events to every registered listener synchronously, in the
// caller's goroutine. A panicking listener is logged and skipped.
type Emitter struct {
	mu        sync.RWMutex
	nextKey   int
	listeners map[int]Listener
	now       func() time.Time
}

func NewEmitter() *Emitter {
	return &Emitter{
		listeners: map[int]Listener{},
		now:       time.Now,
	}
}

// AddListener registers l and returns a function that removes it.
func (e *Emitter) AddListener(l Listener) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextKey++
	key := e.nextKey
	e.listeners[key] = l
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, key)
	}
}

func (e *Emitter) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *Emitter) Emit(eventType string, roundID uint64, data any) Event {
	now := e.now()
	ev := Event{
		ID:       newEventID(now),
		Type:     eventType,
		RoundID:  roundID,
		ServerTS: now.UnixMilli(),
		Data:     data,
	}

	e.mu.RLock()
	keys := make([]int, 0, len(e.listeners))
	snapshot := make([]Listener, 0, len(e.listeners))
	for k, l := range e.listeners {
		keys = append(keys, k)
		snapshot = append(snapshot, l)
	}
	e.mu.RUnlock()

	for i, l := range snapshot {
		deliver(keys[i], l, ev)
	}
	return ev
}

func deliver(key int, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metricListenerPanics.Add(1)
			log.Error().
				Interface("panic", r).
				Int("listener", key).
				Str("event", ev.Type).
				Uint64("round_id", ev.RoundID).
				Msg("event listener panicked")
		}
	}()
	l.OnEvent(ev)
}
