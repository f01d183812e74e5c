package store

import "time"

type RoundSettlement struct {
	RoundID          uint64    `json:"round_id"`
	WinningSide      string    `json:"winning_side"`
	HeadsTotal       uint64    `json:"heads_total"`
	TailsTotal       uint64    `json:"tails_total"`
	TotalPot         uint64    `json:"total_pot"`
	ParticipantCount int       `json:"participant_count"`
	Signature        string    `json:"signature,omitempty"`
	SettledAt        time.Time `json:"settled_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Payout is one credit attempt for a winning bet. Failed attempts carry Error
// and no signature.
type Payout struct {
	ID        string    `json:"id"`
	RoundID   uint64    `json:"round_id"`
	User      string    `json:"user"`
	Amount    uint64    `json:"amount"`
	Payout    uint64    `json:"payout"`
	Signature string    `json:"signature,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
