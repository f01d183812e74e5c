package alertpush

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/alertpush/platforms"
	"flipsol-keeper/internal/events"
)

var errCircuitOpen = errors.New("circuit open")

type job struct {
	target  Target
	eventID string
	msg     platforms.Message
	attempt int
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Manager is an events.Listener. OnEvent formats and enqueues without
// blocking; workers started by Start deliver with exponential retry and a
// per-target circuit breaker.
type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopped  bool
	breakers map[string]breakerState
}

func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	return &Manager{
		cfg: cfg,
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"feishu":  platforms.NewFeishuAdapter(client),
		},
		queue:    make(chan job, cfg.DispatchBuffer),
		done:     make(chan struct{}),
		breakers: map[string]breakerState{},
	}
}

func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("alert push started")
}

// Stop abandons queued and pending retries and waits for in-flight sends.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.done)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) OnEvent(ev events.Event) {
	if !m.cfg.Enabled || len(m.cfg.Targets) == 0 {
		return
	}
	msg, ok := Format(ev)
	if !ok {
		return
	}
	for _, target := range m.cfg.Targets {
		if !target.allows(ev.Type) {
			continue
		}
		if !m.enqueue(job{target: target, eventID: ev.ID, msg: msg}) {
			metricDropped.Add(1)
			log.Warn().Str("event", ev.Type).Str("platform", target.Platform).Msg("alert queue full, alert dropped")
		}
	}
}

func (m *Manager) enqueue(j job) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.queue <- j:
		metricQueued.Add(1)
		metricQueueLen.Set(int64(len(m.queue)))
		return true
	default:
		return false
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case j := <-m.queue:
			metricQueueLen.Set(int64(len(m.queue)))
			m.process(ctx, j)
		}
	}
}

func (m *Manager) process(ctx context.Context, j job) {
	adapter := m.adapters[j.target.Platform]
	if adapter == nil {
		metricDropped.Add(1)
		log.Warn().Str("platform", j.target.Platform).Msg("no adapter for alert platform")
		return
	}

	key := j.target.key()
	if err := m.beforeSend(key, time.Now()); err != nil {
		metricCircuitOpen.Add(1)
		m.retryOrDrop(j, err)
		return
	}
	if err := adapter.Send(ctx, j.target.Endpoint, j.target.Secret, j.msg); err != nil {
		metricFailed.Add(1)
		m.afterFailure(key, time.Now())
		m.retryOrDrop(j, err)
		return
	}
	metricSent.Add(1)
	m.afterSuccess(key)
}

func (m *Manager) retryOrDrop(j job, err error) {
	if j.attempt >= m.cfg.RetryMax {
		metricRetryDropped.Add(1)
		log.Error().Err(err).Str("platform", j.target.Platform).Str("event_id", j.eventID).Int("attempts", j.attempt+1).Msg("alert delivery gave up")
		return
	}
	j.attempt++
	metricRetry.Add(1)
	delay := m.cfg.RetryBase * time.Duration(1<<(j.attempt-1))
	time.AfterFunc(delay, func() {
		select {
		case <-m.done:
		case m.queue <- j:
			metricQueueLen.Set(int64(len(m.queue)))
		}
	})
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakers[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakers[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
		log.Warn().Str("target", key).Dur("open_for", m.cfg.CircuitOpenDuration).Msg("alert target circuit opened")
	}
	m.breakers[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, key)
}
