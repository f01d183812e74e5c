package chain

import (
	"context"
	"time"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

var (
	healthyLatency  = time.Second
	degradedLatency = 3 * time.Second
)

type Health struct {
	Status    HealthStatus `json:"status"`
	Slot      uint64       `json:"slot,omitempty"`
	LatencyMS int64        `json:"latency_ms"`
	Error     string       `json:"error,omitempty"`
}

// Health probes the node with getSlot and grades it by round-trip latency.
func (c *Client) Health(ctx context.Context) Health {
	start := time.Now()
	slot, err := c.GetSlot(ctx)
	latency := time.Since(start)
	h := Health{Slot: slot, LatencyMS: latency.Milliseconds()}
	switch {
	case err != nil:
		h.Status = HealthDown
		h.Error = err.Error()
	case latency < healthyLatency:
		h.Status = HealthHealthy
	case latency < degradedLatency:
		h.Status = HealthDegraded
	default:
		h.Status = HealthDown
	}
	return h
}
