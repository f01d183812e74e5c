package flipsol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flipsol-keeper/internal/chain"
)

// Ledger is the subset of the chain client the program needs.
type Ledger interface {
	GetAccountInfo(ctx context.Context, addr chain.PublicKey) (*chain.Account, error)
	GetProgramAccounts(ctx context.Context, program chain.PublicKey, filters ...chain.AccountFilter) ([]chain.Account, error)
	SendAndConfirm(ctx context.Context, payer chain.Keypair, ixs ...chain.Instruction) (chain.Signature, error)
}

// AccountCheck describes one account a settlement depends on.
type AccountCheck struct {
	Name          string          `json:"name"`
	Address       chain.PublicKey `json:"address"`
	Exists        bool            `json:"exists"`
	Owner         chain.PublicKey `json:"owner"`
	ExpectedOwner chain.PublicKey `json:"expected_owner"`
	Error         string          `json:"error,omitempty"`
}

func (c AccountCheck) OwnerMatches() bool { return c.Exists && c.Owner == c.ExpectedOwner }

// Program reads and drives the flip program through a ledger node.
type Program struct {
	ledger    Ledger
	addrs     Addresses
	authority chain.Keypair

	globalState chain.PublicKey
	treasury    chain.PublicKey
}

func NewProgram(ledger Ledger, programID chain.PublicKey, authority chain.Keypair) (*Program, error) {
	addrs := Addresses{Program: programID}
	global, err := addrs.GlobalState()
	if err != nil {
		return nil, fmt.Errorf("derive global state address: %w", err)
	}
	treasury, err := addrs.Treasury()
	if err != nil {
		return nil, fmt.Errorf("derive treasury address: %w", err)
	}
	return &Program{
		ledger:      ledger,
		addrs:       addrs,
		authority:   authority,
		globalState: global,
		treasury:    treasury,
	}, nil
}

func (p *Program) ID() chain.PublicKey { return p.addrs.Program }

func (p *Program) Authority() chain.PublicKey { return p.authority.PublicKey() }

// GlobalState returns chain.ErrAccountNotFound until the program is initialized.
func (p *Program) GlobalState(ctx context.Context) (*GlobalState, error) {
	acc, err := p.ledger.GetAccountInfo(ctx, p.globalState)
	if err != nil {
		return nil, err
	}
	return DecodeGlobalState(acc.Data)
}

func (p *Program) RoundState(ctx context.Context, roundID uint64) (*RoundState, error) {
	addr, err := p.addrs.Round(roundID)
	if err != nil {
		return nil, err
	}
	acc, err := p.ledger.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	return DecodeRoundState(acc.Data)
}

// RoundBets scans UserBet accounts for roundID. Accounts that fail to decode
// are skipped.
func (p *Program) RoundBets(ctx context.Context, roundID uint64) ([]UserBet, error) {
	accounts, err := p.ledger.GetProgramAccounts(ctx, p.addrs.Program,
		chain.DataSizeFilter(UserBetLen),
		chain.MemcmpFilter(0, userBetDiscriminator),
		chain.MemcmpFilter(40, roundSeed(roundID)),
	)
	if err != nil {
		return nil, err
	}
	bets := make([]UserBet, 0, len(accounts))
	for _, acc := range accounts {
		bet, err := DecodeUserBet(acc.Address, acc.Data)
		if err != nil || bet.RoundID != roundID {
			continue
		}
		bets = append(bets, *bet)
	}
	return bets, nil
}

func (p *Program) CloseRound(ctx context.Context, roundID uint64) (chain.Signature, error) {
	round, err := p.addrs.Round(roundID)
	if err != nil {
		return chain.Signature{}, err
	}
	ix := NewCloseRoundInstruction(p.addrs.Program, CloseRoundAccounts{
		GlobalState: p.globalState,
		Round:       round,
		Treasury:    p.treasury,
		Authority:   p.authority.PublicKey(),
	})
	return p.ledger.SendAndConfirm(ctx, p.authority, ix)
}

func (p *Program) CreditWinner(ctx context.Context, roundID uint64, user chain.PublicKey) (chain.Signature, error) {
	round, err := p.addrs.Round(roundID)
	if err != nil {
		return chain.Signature{}, err
	}
	bet, err := p.addrs.UserBet(user, roundID)
	if err != nil {
		return chain.Signature{}, err
	}
	credit, err := p.addrs.UserCredit(user)
	if err != nil {
		return chain.Signature{}, err
	}
	ix := NewDistributeToCreditInstruction(p.addrs.Program, DistributeAccounts{
		GlobalState: p.globalState,
		Round:       round,
		UserBet:     bet,
		UserCredit:  credit,
		Authority:   p.authority.PublicKey(),
	})
	return p.ledger.SendAndConfirm(ctx, p.authority, ix)
}

// StartRound opens roundID, which must be currentRound+1 on the ledger.
func (p *Program) StartRound(ctx context.Context, roundID uint64, duration time.Duration) (chain.Signature, error) {
	round, err := p.addrs.Round(roundID)
	if err != nil {
		return chain.Signature{}, err
	}
	ix, err := NewStartRoundInstruction(p.addrs.Program, StartRoundAccounts{
		GlobalState: p.globalState,
		Round:       round,
		Authority:   p.authority.PublicKey(),
	}, duration)
	if err != nil {
		return chain.Signature{}, err
	}
	return p.ledger.SendAndConfirm(ctx, p.authority, ix)
}

// SettlementAccounts reports existence and ownership of every program-owned
// account close_round touches.
func (p *Program) SettlementAccounts(ctx context.Context, roundID uint64) ([]AccountCheck, error) {
	round, err := p.addrs.Round(roundID)
	if err != nil {
		return nil, err
	}
	targets := []struct {
		name string
		addr chain.PublicKey
	}{
		{"global_state", p.globalState},
		{"round", round},
		{"treasury", p.treasury},
	}
	checks := make([]AccountCheck, 0, len(targets))
	for _, tgt := range targets {
		check := AccountCheck{Name: tgt.name, Address: tgt.addr, ExpectedOwner: p.addrs.Program}
		acc, err := p.ledger.GetAccountInfo(ctx, tgt.addr)
		switch {
		case errors.Is(err, chain.ErrAccountNotFound):
		case err != nil:
			check.Error = err.Error()
		default:
			check.Exists = true
			check.Owner = acc.Owner
		}
		checks = append(checks, check)
	}
	return checks, nil
}
