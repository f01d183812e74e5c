// Package relay republishes keeper events on a Redis pub/sub channel so
// other processes can follow rounds without polling the ledger.
package relay

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/events"
)

var (
	metricPublished     = expvar.NewInt("relay_published_total")
	metricPublishErrors = expvar.NewInt("relay_publish_errors_total")
	metricDropped       = expvar.NewInt("relay_dropped_total")
)

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	client *redis.Client
}

func (p redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Relay is an events.Listener. OnEvent only enqueues; a single goroutine
// started by Run publishes in emission order. When the queue is full the
// event is dropped.
type Relay struct {
	pub            publisher
	channel        string
	publishTimeout time.Duration
	queue          chan events.Event

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func New(client *redis.Client, channel string, buffer int) *Relay {
	return newRelay(redisPublisher{client: client}, channel, buffer)
}

func newRelay(pub publisher, channel string, buffer int) *Relay {
	if buffer <= 0 {
		buffer = 256
	}
	return &Relay{
		pub:            pub,
		channel:        channel,
		publishTimeout: 5 * time.Second,
		queue:          make(chan events.Event, buffer),
		done:           make(chan struct{}),
	}
}

func (r *Relay) OnEvent(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		metricDropped.Add(1)
		log.Warn().Str("event", ev.Type).Uint64("round_id", ev.RoundID).Msg("relay queue full, event dropped")
	}
}

// Run publishes queued events until ctx is done or Close drains the queue.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.queue:
			if !ok {
				return
			}
			r.publish(ctx, ev)
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		metricPublishErrors.Add(1)
		log.Error().Err(err).Str("event", ev.Type).Msg("encode relay event")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	if err := r.pub.Publish(pctx, r.channel, payload); err != nil {
		metricPublishErrors.Add(1)
		log.Warn().Err(err).Str("event", ev.Type).Str("channel", r.channel).Msg("relay publish failed")
		return
	}
	metricPublished.Add(1)
}

// Close stops accepting events and waits for Run to publish what is queued.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}
