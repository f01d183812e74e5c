package httptransport

import (
	"context"
	"net/http"
	"time"

	"flipsol-keeper/internal/chain"
)

const probeTimeout = 5 * time.Second

type PublicHandlers struct {
	deps Deps
	now  func() time.Time
}

func NewPublicHandlers(deps Deps) *PublicHandlers {
	return &PublicHandlers{deps: deps, now: time.Now}
}

// Health reports the ledger node and, when configured, the mirror database.
// Only a down node makes the keeper unhealthy.
func (h *PublicHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		body := map[string]any{"ok": true}
		status := http.StatusOK
		if h.deps.Node != nil {
			node := h.deps.Node.Health(ctx)
			body["node"] = node
			if node.Status == chain.HealthDown {
				body["ok"] = false
				status = http.StatusServiceUnavailable
			}
		}
		if h.deps.Store != nil {
			if err := h.deps.Store.Ping(ctx); err != nil {
				body["db"] = "down"
			} else {
				body["db"] = "up"
			}
		}
		if h.deps.Keeper != nil {
			body["keeper"] = h.deps.Keeper.Status().IsRunning
		}
		writeJSON(w, status, body)
	}
}

func (h *PublicHandlers) KeeperStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if h.deps.Keeper == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "keeper_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Keeper.Status())
	}
}

// Phase reports the logical round for the current wall-clock time.
func (h *PublicHandlers) Phase() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		now := h.now()
		writeJSON(w, http.StatusOK, map[string]any{
			"round":        h.deps.Clock.At(now),
			"time_left_ms": h.deps.Clock.TimeLeft(now).Milliseconds(),
			"server_ts":    now.UnixMilli(),
		})
	}
}
