package flipsol

import (
	"encoding/binary"

	"flipsol-keeper/internal/chain"
)

var (
	seedGlobalState = []byte("global_state")
	seedTreasury    = []byte("treasury")
	seedRound       = []byte("round")
	seedUserBet     = []byte("user_bet")
	seedUserCredit  = []byte("user_credit")
)

func roundSeed(roundID uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], roundID)
	return b[:]
}

// Addresses derives the program's deterministic account addresses.
type Addresses struct {
	Program chain.PublicKey
}

func (a Addresses) derive(seeds ...[]byte) (chain.PublicKey, error) {
	addr, _, err := chain.FindProgramAddress(seeds, a.Program)
	return addr, err
}

func (a Addresses) GlobalState() (chain.PublicKey, error) { return a.derive(seedGlobalState) }

func (a Addresses) Treasury() (chain.PublicKey, error) { return a.derive(seedTreasury) }

func (a Addresses) Round(roundID uint64) (chain.PublicKey, error) {
	return a.derive(seedRound, roundSeed(roundID))
}

func (a Addresses) UserBet(user chain.PublicKey, roundID uint64) (chain.PublicKey, error) {
	return a.derive(seedUserBet, user[:], roundSeed(roundID))
}

func (a Addresses) UserCredit(user chain.PublicKey) (chain.PublicKey, error) {
	return a.derive(seedUserCredit, user[:])
}
