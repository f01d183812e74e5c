package flipsol

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

const (
	BasisPoints      = 10_000
	LamportsPerSOL   = 1_000_000_000
	lamportsDecimals = 9
)

var basisPoints = decimal.NewFromInt(BasisPoints)

// mulDiv computes a*b/c without intermediate overflow, saturating when the
// quotient does not fit.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

type PotSplit struct {
	Rake       uint64
	Jackpot    uint64
	WinnerPool uint64
}

// SplitPot mirrors the program's integer arithmetic: each cut is truncated
// separately and the pool is what remains.
func SplitPot(pot uint64, rakeBps, jackpotBps uint16) PotSplit {
	rake := mulDiv(pot, uint64(rakeBps), BasisPoints)
	jackpot := mulDiv(pot, uint64(jackpotBps), BasisPoints)
	pool := uint64(0)
	if rake+jackpot < pot {
		pool = pot - rake - jackpot
	}
	return PotSplit{Rake: rake, Jackpot: jackpot, WinnerPool: pool}
}

// PayoutShare is a winner's integer share: amount*pool/winningTotal.
func PayoutShare(amount, winningTotal, pool uint64) uint64 {
	return mulDiv(amount, pool, winningTotal)
}

// QuotePayout is the expected credit for bet in a settled round. It returns 0
// for losing, unsettled or already claimed bets.
func QuotePayout(gs GlobalState, rs RoundState, bet UserBet) uint64 {
	if !rs.Settled || bet.Claimed || bet.Side != rs.WinningSide {
		return 0
	}
	split := SplitPot(rs.TotalPot(), gs.RakeBps, gs.JackpotBps)
	return PayoutShare(bet.Amount, rs.SideTotal(rs.WinningSide), split.WinnerPool)
}

// WinnerPoolSOL is the exact (untruncated) pool for display.
func WinnerPoolSOL(pot decimal.Decimal, rakeBps, jackpotBps uint16) decimal.Decimal {
	fee := pot.Mul(decimal.NewFromInt(int64(rakeBps) + int64(jackpotBps))).Div(basisPoints)
	return pot.Sub(fee)
}

func ShareSOL(amount, winningTotal, pool decimal.Decimal) decimal.Decimal {
	if winningTotal.IsZero() {
		return decimal.Zero
	}
	return pool.Mul(amount).Div(winningTotal)
}

func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsDecimals)
}

func SOLToLamports(sol decimal.Decimal) uint64 {
	return uint64(sol.Shift(lamportsDecimals).Truncate(0).IntPart())
}
