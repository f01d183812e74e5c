package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

const upsertSettlementSQL = `
INSERT INTO round_settlements (round_id, winning_side, heads_total, tails_total, total_pot, participant_count, signature)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (round_id) DO UPDATE SET
  winning_side = CASE WHEN EXCLUDED.winning_side = 'unset' THEN round_settlements.winning_side ELSE EXCLUDED.winning_side END,
  heads_total = EXCLUDED.heads_total,
  tails_total = EXCLUDED.tails_total,
  total_pot = EXCLUDED.total_pot,
  participant_count = GREATEST(EXCLUDED.participant_count, round_settlements.participant_count),
  signature = COALESCE(EXCLUDED.signature, round_settlements.signature),
  updated_at = now()`

// RecordSettlement upserts the round summary. A later write without a
// signature, winning side or participant count keeps what is already stored.
func (s *Store) RecordSettlement(ctx context.Context, r RoundSettlement) error {
	roundID, err := uint64Param(r.RoundID)
	if err != nil {
		return err
	}
	heads, err := uint64Param(r.HeadsTotal)
	if err != nil {
		return err
	}
	tails, err := uint64Param(r.TailsTotal)
	if err != nil {
		return err
	}
	pot, err := uint64Param(r.TotalPot)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, upsertSettlementSQL,
		roundID, r.WinningSide, heads, tails, pot, int32(r.ParticipantCount), textParam(r.Signature))
	return err
}

func (s *Store) GetRoundSettlement(ctx context.Context, roundID uint64) (*RoundSettlement, error) {
	id, err := uint64Param(roundID)
	if err != nil {
		return nil, err
	}
	var (
		out                RoundSettlement
		rid, heads, tails  int64
		pot                int64
		participants       int32
		sig                pgtype.Text
		settledAt, updated pgtype.Timestamptz
	)
	err = s.Pool.QueryRow(ctx, `
SELECT round_id, winning_side, heads_total, tails_total, total_pot, participant_count, signature, settled_at, updated_at
FROM round_settlements WHERE round_id = $1`, id).
		Scan(&rid, &out.WinningSide, &heads, &tails, &pot, &participants, &sig, &settledAt, &updated)
	if err != nil {
		return nil, mapNotFound(err)
	}
	out.RoundID = uint64(rid)
	out.HeadsTotal = uint64(heads)
	out.TailsTotal = uint64(tails)
	out.TotalPot = uint64(pot)
	out.ParticipantCount = int(participants)
	out.Signature = textVal(sig)
	out.SettledAt = settledAt.Time
	out.UpdatedAt = updated.Time
	return &out, nil
}

// RecordPayouts appends one row per credit attempt in a single batch.
func (s *Store) RecordPayouts(ctx context.Context, payouts []Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range payouts {
		roundID, err := uint64Param(p.RoundID)
		if err != nil {
			return err
		}
		amount, err := uint64Param(p.Amount)
		if err != nil {
			return err
		}
		payout, err := uint64Param(p.Payout)
		if err != nil {
			return err
		}
		id := p.ID
		if id == "" {
			id = ulid.Make().String()
		}
		batch.Queue(`
INSERT INTO round_payouts (id, round_id, user_pubkey, amount, payout, signature, error)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, roundID, p.User, amount, payout, textParam(p.Signature), textParam(p.Error))
	}
	br := s.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range payouts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert payout %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) ListRoundPayouts(ctx context.Context, roundID uint64) ([]Payout, error) {
	id, err := uint64Param(roundID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, round_id, user_pubkey, amount, payout, signature, error, created_at
FROM round_payouts WHERE round_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		var (
			p                   Payout
			rid, amount, payout int64
			sig, errText        pgtype.Text
			createdAt           pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &rid, &p.User, &amount, &payout, &sig, &errText, &createdAt); err != nil {
			return nil, err
		}
		p.RoundID = uint64(rid)
		p.Amount = uint64(amount)
		p.Payout = uint64(payout)
		p.Signature = textVal(sig)
		p.Error = textVal(errText)
		p.CreatedAt = createdAt.Time
		out = append(out, p)
	}
	return out, rows.Err()
}
