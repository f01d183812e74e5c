package keeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/chain"
	"flipsol-keeper/internal/flipsol"
)

type Class string

const (
	// ClassDependency: an auxiliary account is missing or mis-owned. The
	// round cannot settle until an operator fixes the account.
	ClassDependency Class = "dependency"
	ClassRejected   Class = "rejected"
	ClassTransient  Class = "transient"
)

type Outcome string

const (
	OutcomeSettled        Outcome = "settled"
	OutcomeAlreadySettled Outcome = "already_settled"
)

type SettlementResult struct {
	RoundID   uint64          `json:"round_id"`
	Outcome   Outcome         `json:"outcome"`
	Signature chain.Signature `json:"signature"`
}

type SettlementError struct {
	RoundID  uint64
	Class    Class
	Accounts []flipsol.AccountCheck
	Err      error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settle round %d (%s): %v", e.RoundID, e.Class, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }

// Substring fallbacks for nodes that do not return a structured error payload.
var (
	alreadySettledSignatures = []string{"alreadysettled", "already settled", "0x1775"}
	dependencySignatures     = []string{
		"jackpot",
		"accountnotinitialized",
		"0xbc4",
		"expected this account to be already initialized",
		"accountownedbywrongprogram",
		"0xbbf",
	}
)

type errorKind int

const (
	kindTransient errorKind = iota
	kindRejected
	kindDependency
	kindAlreadySettled
)

func classifySettlementError(err error) errorKind {
	if code, ok := chain.CustomErrorCode(err); ok {
		switch {
		case code == flipsol.ErrCodeAlreadySettled:
			return kindAlreadySettled
		case flipsol.IsAccountDependencyCode(code):
			return kindDependency
		default:
			return kindRejected
		}
	}

	haystack := strings.ToLower(err.Error() + "\n" + strings.Join(chain.ErrorLogs(err), "\n"))
	if containsAny(haystack, alreadySettledSignatures) {
		return kindAlreadySettled
	}
	if containsAny(haystack, dependencySignatures) {
		return kindDependency
	}
	if chain.IsTransient(err) {
		return kindTransient
	}
	var rpcErr *chain.RPCError
	var txErr *chain.TransactionError
	if errors.As(err, &rpcErr) || errors.As(err, &txErr) {
		return kindRejected
	}
	return kindTransient
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Settler submits close_round once per call and interprets the result. It
// never retries; the next tick re-reads the round and decides again.
type Settler struct {
	ledger        Ledger
	submitTimeout time.Duration
	readTimeout   time.Duration
}

func NewSettler(ledger Ledger, submitTimeout, readTimeout time.Duration) *Settler {
	return &Settler{ledger: ledger, submitTimeout: submitTimeout, readTimeout: readTimeout}
}

func (s *Settler) Settle(ctx context.Context, roundID uint64) (*SettlementResult, error) {
	sctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	sig, err := s.ledger.CloseRound(sctx, roundID)
	cancel()
	if err == nil {
		metricSettlements.Add(string(OutcomeSettled), 1)
		log.Info().Uint64("round_id", roundID).Str("signature", sig.String()).Msg("round settled")
		return &SettlementResult{RoundID: roundID, Outcome: OutcomeSettled, Signature: sig}, nil
	}

	switch classifySettlementError(err) {
	case kindAlreadySettled:
		metricSettlements.Add(string(OutcomeAlreadySettled), 1)
		log.Info().Uint64("round_id", roundID).Msg("round already settled by another submitter")
		return &SettlementResult{RoundID: roundID, Outcome: OutcomeAlreadySettled}, nil
	case kindDependency:
		accounts := s.inspect(ctx, roundID)
		ev := log.Error().Err(err).Uint64("round_id", roundID)
		for _, acc := range accounts {
			ev = ev.Dict(acc.Name, zerolog.Dict().
				Str("address", acc.Address.String()).
				Bool("exists", acc.Exists).
				Str("owner", acc.Owner.String()).
				Str("expected_owner", acc.ExpectedOwner.String()).
				Bool("owner_matches", acc.OwnerMatches()))
		}
		if logs := chain.ErrorLogs(err); len(logs) > 0 {
			ev = ev.Strs("program_logs", logs)
		}
		ev.Msg("settlement blocked by a settlement account; round left unsettled")
		metricSettlements.Add(string(ClassDependency), 1)
		return nil, &SettlementError{RoundID: roundID, Class: ClassDependency, Accounts: accounts, Err: err}
	case kindRejected:
		log.Error().Err(err).Uint64("round_id", roundID).Strs("program_logs", chain.ErrorLogs(err)).Msg("close round rejected")
		metricSettlements.Add(string(ClassRejected), 1)
		return nil, &SettlementError{RoundID: roundID, Class: ClassRejected, Err: err}
	default:
		log.Warn().Err(err).Uint64("round_id", roundID).Msg("close round failed, will retry next tick")
		metricSettlements.Add(string(ClassTransient), 1)
		return nil, &SettlementError{RoundID: roundID, Class: ClassTransient, Err: err}
	}
}

func (s *Settler) inspect(ctx context.Context, roundID uint64) []flipsol.AccountCheck {
	ictx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	accounts, err := s.ledger.SettlementAccounts(ictx, roundID)
	if err != nil {
		log.Warn().Err(err).Uint64("round_id", roundID).Msg("inspect settlement accounts failed")
		return nil
	}
	return accounts
}
