package keeper

import "expvar"

var (
	metricTicks           = expvar.NewInt("keeper_ticks_total")
	metricTicksSkipped    = expvar.NewInt("keeper_ticks_skipped_total")
	metricConditions      = expvar.NewMap("keeper_tick_conditions_total")
	metricSettlements     = expvar.NewMap("keeper_settlements_total")
	metricCredits         = expvar.NewMap("keeper_credits_total")
	metricRoundsStarted   = expvar.NewInt("keeper_rounds_started_total")
	metricRecorderErrors  = expvar.NewInt("keeper_recorder_errors_total")
	metricLastTickUnixSec = expvar.NewInt("keeper_last_tick_unix")
)
