package events

import "expvar"

var (
	metricListenerPanics = expvar.NewInt("events_listener_panics_total")
	metricBufferDropped  = expvar.NewInt("events_buffer_dropped_total")
)
