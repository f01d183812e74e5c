package store

import (
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrValueOutOfRange = errors.New("value exceeds bigint range")

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func textParam(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func textVal(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// uint64Param maps an unsigned id or amount onto BIGINT.
func uint64Param(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, ErrValueOutOfRange
	}
	return int64(v), nil
}
