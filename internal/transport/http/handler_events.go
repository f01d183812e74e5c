package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flipsol-keeper/internal/events"
)

var pingInterval = 15 * time.Second

// RoundEventsHandler streams keeper events as SSE. A Last-Event-ID header
// replays buffered events emitted after that id.
func RoundEventsHandler(buf *events.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if buf == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "events_unavailable")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		replayed := ""
		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := writeSSE(w, ev); err != nil {
				return
			}
			replayed = ev.ID
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				// Subscribed before replay, so the first live events may repeat it.
				if replayed != "" && ev.ID <= replayed {
					continue
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				now := time.Now().UnixMilli()
				ping := events.Event{Type: "ping", ServerTS: now, Data: map[string]any{"ts": now}}
				if err := writeSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
