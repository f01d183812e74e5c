package flipsol

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestShareSOLTwoWinners(t *testing.T) {
	// 10 SOL pot, 2% rake, 1% jackpot cut, winners staked 1 and 3 of 4 SOL on the winning side.
	pool := WinnerPoolSOL(decimal.NewFromInt(10), 200, 100)
	if !pool.Equal(decimal.RequireFromString("9.7")) {
		t.Fatalf("pool = %s, want 9.7", pool)
	}
	total := decimal.NewFromInt(4)
	a := ShareSOL(decimal.NewFromInt(1), total, pool)
	b := ShareSOL(decimal.NewFromInt(3), total, pool)
	if !a.Equal(decimal.RequireFromString("2.425")) || !b.Equal(decimal.RequireFromString("7.275")) {
		t.Fatalf("shares = %s, %s; want 2.425, 7.275", a, b)
	}
	if !a.Add(b).Equal(pool) {
		t.Fatalf("shares sum %s != pool %s", a.Add(b), pool)
	}
}

func TestSplitPotMatchesIntegerMath(t *testing.T) {
	split := SplitPot(10*LamportsPerSOL, 200, 100)
	if split.Rake != 200_000_000 || split.Jackpot != 100_000_000 || split.WinnerPool != 9_700_000_000 {
		t.Fatalf("unexpected split: %+v", split)
	}
	if got := PayoutShare(1*LamportsPerSOL, 4*LamportsPerSOL, split.WinnerPool); got != 2_425_000_000 {
		t.Fatalf("share = %d, want 2425000000", got)
	}

	odd := SplitPot(999, 333, 333)
	if odd.Rake != 33 || odd.Jackpot != 33 || odd.WinnerPool != 933 {
		t.Fatalf("truncation split = %+v", odd)
	}
}

func TestQuotePayout(t *testing.T) {
	gs := GlobalState{RakeBps: 200, JackpotBps: 100}
	rs := RoundState{HeadsTotal: 6 * LamportsPerSOL, TailsTotal: 4 * LamportsPerSOL, Settled: true, WinningSide: SideTails}

	winner := UserBet{Side: SideTails, Amount: 3 * LamportsPerSOL}
	if got := QuotePayout(gs, rs, winner); got != 7_275_000_000 {
		t.Fatalf("winner quote = %d, want 7275000000", got)
	}
	if got := QuotePayout(gs, rs, UserBet{Side: SideHeads, Amount: LamportsPerSOL}); got != 0 {
		t.Fatalf("loser quote = %d, want 0", got)
	}
	winner.Claimed = true
	if got := QuotePayout(gs, rs, winner); got != 0 {
		t.Fatalf("claimed quote = %d, want 0", got)
	}
	rs.Settled = false
	if got := QuotePayout(gs, rs, UserBet{Side: SideTails, Amount: 1}); got != 0 {
		t.Fatalf("unsettled quote = %d, want 0", got)
	}
}

func TestMulDivLargeValues(t *testing.T) {
	if got := mulDiv(math.MaxUint64/2, 10_000, 10_000); got != math.MaxUint64/2 {
		t.Fatalf("mulDiv large = %d", got)
	}
	if got := mulDiv(1, 1, 0); got != 0 {
		t.Fatalf("mulDiv by zero = %d, want 0", got)
	}
}

func TestLamportsToSOL(t *testing.T) {
	if got := LamportsToSOL(4_000_000_000).String(); got != "4" {
		t.Fatalf("LamportsToSOL = %s, want 4", got)
	}
	if got := LamportsToSOL(2_425_000_000).String(); got != "2.425" {
		t.Fatalf("LamportsToSOL = %s, want 2.425", got)
	}
	if got := SOLToLamports(decimal.RequireFromString("7.275")); got != 7_275_000_000 {
		t.Fatalf("SOLToLamports = %d", got)
	}
}
