package alertpush

import "expvar"

var (
	metricQueued       = expvar.NewInt("alert_push_queued_total")
	metricDropped      = expvar.NewInt("alert_push_dropped_total")
	metricRetry        = expvar.NewInt("alert_push_retry_total")
	metricRetryDropped = expvar.NewInt("alert_push_retry_dropped_total")
	metricSent         = expvar.NewInt("alert_push_sent_total")
	metricFailed       = expvar.NewInt("alert_push_failed_total")
	metricCircuitOpen  = expvar.NewInt("alert_push_circuit_open_total")
	metricQueueLen     = expvar.NewInt("alert_push_queue_len")
)
