package events

// RoundStarted is the payload of round_started.
type RoundStarted struct {
	RoundID   uint64 `json:"round_id"`
	EndsAt    int64  `json:"ends_at,omitempty"`
	Signature string `json:"signature,omitempty"`
	Source    string `json:"source"`
}

type RoundStatus struct {
	RoundID     uint64 `json:"round_id"`
	HeadsTotal  uint64 `json:"heads_total"`
	TailsTotal  uint64 `json:"tails_total"`
	TotalPot    uint64 `json:"total_pot"`
	TotalPotSOL string `json:"total_pot_sol"`
	EndsAt      int64  `json:"ends_at"`
	Settled     bool   `json:"settled"`
	WinningSide string `json:"winning_side"`
	Expired     bool   `json:"expired"`
	TimeLeftMS  int64  `json:"time_left_ms"`
}

type RoundSettled struct {
	RoundID     uint64 `json:"round_id"`
	Signature   string `json:"signature,omitempty"`
	Outcome     string `json:"outcome"`
	WinningSide string `json:"winning_side"`
	HeadsTotal  uint64 `json:"heads_total"`
	TailsTotal  uint64 `json:"tails_total"`
	TotalPot    uint64 `json:"total_pot"`
	TotalPotSOL string `json:"total_pot_sol"`
}

type SettlementDeferred struct {
	RoundID uint64 `json:"round_id"`
	Class   string `json:"class"`
	Reason  string `json:"reason"`
}

type WinningsDistributed struct {
	RoundID   uint64 `json:"round_id"`
	Winners   int    `json:"winners"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	PaidOut   uint64 `json:"paid_out"`
}
