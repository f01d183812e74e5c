package flipsol

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"flipsol-keeper/internal/chain"
)

var (
	ErrCorruptAccount        = errors.New("corrupt account")
	ErrAccountTooShort       = fmt.Errorf("%w: data too short", ErrCorruptAccount)
	ErrDiscriminatorMismatch = fmt.Errorf("%w: discriminator mismatch", ErrCorruptAccount)
)

// MinValidEndsAt is the smallest round end timestamp (unix seconds) treated as
// real. Anything below is a legacy or corrupt value.
const MinValidEndsAt int64 = 1_000_000_000

const discriminatorLen = 8

const (
	globalStateMinLen = 52
	globalStateLen    = 62
	roundStateMinLen  = 42
	roundStateLen     = 43
	userBetMinLen     = 58
	// UserBetLen is the full on-ledger size of a UserBet, used as a scan filter.
	UserBetLen = 59
)

var (
	globalStateDiscriminator = accountDiscriminator("GlobalState")
	roundStateDiscriminator  = accountDiscriminator("RoundState")
	userBetDiscriminator     = accountDiscriminator("UserBet")
)

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:discriminatorLen]
}

type Side uint8

const (
	SideHeads Side = 0
	SideTails Side = 1
	SideUnset Side = 2
)

func (s Side) String() string {
	switch s {
	case SideHeads:
		return "heads"
	case SideTails:
		return "tails"
	case SideUnset:
		return "unset"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

type GlobalState struct {
	Authority    chain.PublicKey
	CurrentRound uint64
	RakeBps      uint16
	JackpotBps   uint16
	TreasuryBump uint8
	JackpotBump  uint8
	MinBet       uint64
}

type RoundState struct {
	RoundID     uint64
	HeadsTotal  uint64
	TailsTotal  uint64
	EndsAt      int64
	Settled     bool
	WinningSide Side
	Bump        uint8
}

func (r RoundState) TotalPot() uint64 { return r.HeadsTotal + r.TailsTotal }

func (r RoundState) SideTotal(side Side) uint64 {
	switch side {
	case SideHeads:
		return r.HeadsTotal
	case SideTails:
		return r.TailsTotal
	default:
		return 0
	}
}

func (r RoundState) HasValidEndsAt() bool { return r.EndsAt >= MinValidEndsAt }

func (r RoundState) EndsAtTime() time.Time { return time.Unix(r.EndsAt, 0) }

// IsExpired reports now >= endsAt. Comparing whole seconds matches a
// millisecond comparison against endsAt*1000 without overflowing on large
// endsAt values.
func (r RoundState) IsExpired(now time.Time) bool {
	return now.Unix() >= r.EndsAt
}

type UserBet struct {
	Address chain.PublicKey
	User    chain.PublicKey
	RoundID uint64
	Side    Side
	Amount  uint64
	Claimed bool
	Bump    uint8
}

func checkHeader(data, disc []byte, minLen int, name string) error {
	if len(data) < minLen {
		return fmt.Errorf("%w: %s has %d bytes, need %d", ErrAccountTooShort, name, len(data), minLen)
	}
	if !bytes.Equal(data[:discriminatorLen], disc) {
		return fmt.Errorf("%w: not a %s account", ErrDiscriminatorMismatch, name)
	}
	return nil
}

// DecodeGlobalState accepts the short layout that predates treasuryBump,
// jackpotBump and minBet; missing trailing fields stay zero.
func DecodeGlobalState(data []byte) (*GlobalState, error) {
	if err := checkHeader(data, globalStateDiscriminator, globalStateMinLen, "GlobalState"); err != nil {
		return nil, err
	}
	gs := &GlobalState{
		CurrentRound: binary.LittleEndian.Uint64(data[40:48]),
		RakeBps:      binary.LittleEndian.Uint16(data[48:50]),
		JackpotBps:   binary.LittleEndian.Uint16(data[50:52]),
	}
	copy(gs.Authority[:], data[8:40])
	if len(data) >= 54 {
		gs.TreasuryBump = data[52]
		gs.JackpotBump = data[53]
	}
	if len(data) >= globalStateLen {
		gs.MinBet = binary.LittleEndian.Uint64(data[54:62])
	}
	return gs, nil
}

func DecodeRoundState(data []byte) (*RoundState, error) {
	if err := checkHeader(data, roundStateDiscriminator, roundStateMinLen, "RoundState"); err != nil {
		return nil, err
	}
	rs := &RoundState{
		RoundID:     binary.LittleEndian.Uint64(data[8:16]),
		HeadsTotal:  binary.LittleEndian.Uint64(data[16:24]),
		TailsTotal:  binary.LittleEndian.Uint64(data[24:32]),
		EndsAt:      int64(binary.LittleEndian.Uint64(data[32:40])),
		Settled:     data[40] != 0,
		WinningSide: Side(data[41]),
	}
	if len(data) >= roundStateLen {
		rs.Bump = data[42]
	}
	return rs, nil
}

func DecodeUserBet(address chain.PublicKey, data []byte) (*UserBet, error) {
	if err := checkHeader(data, userBetDiscriminator, userBetMinLen, "UserBet"); err != nil {
		return nil, err
	}
	bet := &UserBet{
		Address: address,
		RoundID: binary.LittleEndian.Uint64(data[40:48]),
		Side:    Side(data[48]),
		Amount:  binary.LittleEndian.Uint64(data[49:57]),
		Claimed: data[57] != 0,
	}
	copy(bet.User[:], data[8:40])
	if len(data) >= UserBetLen {
		bet.Bump = data[58]
	}
	return bet, nil
}

func (gs GlobalState) MarshalBinary() ([]byte, error) {
	out := make([]byte, globalStateLen)
	copy(out, globalStateDiscriminator)
	copy(out[8:40], gs.Authority[:])
	binary.LittleEndian.PutUint64(out[40:48], gs.CurrentRound)
	binary.LittleEndian.PutUint16(out[48:50], gs.RakeBps)
	binary.LittleEndian.PutUint16(out[50:52], gs.JackpotBps)
	out[52] = gs.TreasuryBump
	out[53] = gs.JackpotBump
	binary.LittleEndian.PutUint64(out[54:62], gs.MinBet)
	return out, nil
}

func (r RoundState) MarshalBinary() ([]byte, error) {
	out := make([]byte, roundStateLen)
	copy(out, roundStateDiscriminator)
	binary.LittleEndian.PutUint64(out[8:16], r.RoundID)
	binary.LittleEndian.PutUint64(out[16:24], r.HeadsTotal)
	binary.LittleEndian.PutUint64(out[24:32], r.TailsTotal)
	binary.LittleEndian.PutUint64(out[32:40], uint64(r.EndsAt))
	out[40] = boolByte(r.Settled)
	out[41] = byte(r.WinningSide)
	out[42] = r.Bump
	return out, nil
}

func (b UserBet) MarshalBinary() ([]byte, error) {
	out := make([]byte, UserBetLen)
	copy(out, userBetDiscriminator)
	copy(out[8:40], b.User[:])
	binary.LittleEndian.PutUint64(out[40:48], b.RoundID)
	out[48] = byte(b.Side)
	binary.LittleEndian.PutUint64(out[49:57], b.Amount)
	out[57] = boolByte(b.Claimed)
	out[58] = b.Bump
	return out, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
