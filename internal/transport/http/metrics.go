package httptransport

import "expvar"

var (
	metricSSEConnectionsTotal  = expvar.NewInt("rounds_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("rounds_sse_connections_active")

	metricAdminUnauthorized = expvar.NewInt("admin_unauthorized_total")
	metricAdminOps          = expvar.NewMap("admin_ops_total")
)
