package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/flipsol"
	"flipsol-keeper/internal/keeper"
	"flipsol-keeper/internal/phase"
	"flipsol-keeper/internal/store"
)

type AdminHandlers struct {
	deps Deps
}

func NewAdminHandlers(deps Deps) *AdminHandlers {
	if deps.DefaultRoundDuration <= 0 {
		deps.DefaultRoundDuration = phase.DefaultRoundDuration
	}
	return &AdminHandlers{deps: deps}
}

// OpenRound starts the next ledger round. The body is optional:
// {"duration_seconds": 60}.
func (h *AdminHandlers) OpenRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminOps.Add("open_round", 1)
		if h.deps.Opener == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "opener_unavailable")
			return
		}
		var body struct {
			DurationSeconds *int64 `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		duration := h.deps.DefaultRoundDuration
		if body.DurationSeconds != nil {
			duration = time.Duration(*body.DurationSeconds) * time.Second
		}

		res, err := h.deps.Opener.Open(r.Context(), duration)
		switch {
		case errors.Is(err, flipsol.ErrInvalidDuration):
			WriteHTTPError(w, http.StatusBadRequest, "invalid_duration")
		case errors.Is(err, keeper.ErrRoundOpen):
			WriteHTTPError(w, http.StatusConflict, "round_open")
		case errors.Is(err, keeper.ErrNotInitialized):
			WriteHTTPError(w, http.StatusConflict, "not_initialized")
		case err != nil:
			log.Error().Err(err).Msg("open round failed")
			WriteHTTPError(w, http.StatusBadGateway, "ledger_error")
		default:
			writeJSON(w, http.StatusCreated, map[string]any{
				"round_id":         res.RoundID,
				"signature":        res.Signature.String(),
				"duration_seconds": int64(res.Duration / time.Second),
				"ends_at":          res.EndsAt,
			})
		}
	}
}

func (h *AdminHandlers) Distribute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminOps.Add("distribute", 1)
		roundID, ok := parseRoundID(w, r)
		if !ok {
			return
		}
		res, err := h.deps.Keeper.Distribute(r.Context(), roundID)
		switch {
		case errors.Is(err, keeper.ErrRoundNotSettled):
			WriteHTTPError(w, http.StatusConflict, "round_not_settled")
		case errors.Is(err, chain.ErrAccountNotFound):
			WriteHTTPError(w, http.StatusNotFound, "round_not_found")
		case err != nil:
			log.Error().Err(err).Uint64("round_id", roundID).Msg("distribution failed")
			WriteHTTPError(w, http.StatusBadGateway, "ledger_error")
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func (h *AdminHandlers) Settlement() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roundID, ok := parseRoundID(w, r)
		if !ok {
			return
		}
		if h.deps.Store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		settlement, err := h.deps.Store.GetRoundSettlement(r.Context(), roundID)
		if errors.Is(err, store.ErrNotFound) {
			WriteHTTPError(w, http.StatusNotFound, "settlement_not_found")
			return
		}
		if err != nil {
			log.Error().Err(err).Uint64("round_id", roundID).Msg("read settlement failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		payouts, err := h.deps.Store.ListRoundPayouts(r.Context(), roundID)
		if err != nil {
			log.Error().Err(err).Uint64("round_id", roundID).Msg("read payouts failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settlement": settlement, "payouts": payouts})
	}
}

// Tick forces a reconciliation pass outside the schedule.
func (h *AdminHandlers) Tick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminOps.Add("tick", 1)
		ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
		defer cancel()
		res := h.deps.Keeper.Tick(ctx)
		body := map[string]any{"result": res}
		if res.Err != nil {
			body["error"] = res.Err.Error()
		}
		status := http.StatusOK
		if res.Skipped {
			status = http.StatusConflict
		}
		writeJSON(w, status, body)
	}
}

func parseRoundID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "round_id"), 10, 64)
	if err != nil || id == 0 {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_round_id")
		return 0, false
	}
	return id, true
}
