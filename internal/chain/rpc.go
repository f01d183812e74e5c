package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Account is the decoded value of getAccountInfo.
type Account struct {
	Address    PublicKey
	Owner      PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// Client is a JSON-RPC client for a ledger node.
type Client struct {
	endpoint    string
	http        *http.Client
	commitment  Commitment
	confirmPoll time.Duration
	nextID      atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithCommitment(commitment Commitment) Option {
	return func(c *Client) { c.commitment = commitment }
}

func WithConfirmPoll(d time.Duration) Option { return func(c *Client) { c.confirmPoll = d } }

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		http:        &http.Client{Timeout: 30 * time.Second},
		commitment:  CommitmentConfirmed,
		confirmPoll: 750 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Commitment() Commitment { return c.commitment }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", method, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))})
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s: %w", method, decoded.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

type accountJSON struct {
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Lamports   uint64   `json:"lamports"`
	Executable bool     `json:"executable"`
}

func (a accountJSON) decode(addr PublicKey) (*Account, error) {
	owner, err := ParsePublicKey(a.Owner)
	if err != nil {
		return nil, err
	}
	if len(a.Data) == 0 {
		return nil, fmt.Errorf("account %s: missing data", addr)
	}
	data, err := base64.StdEncoding.DecodeString(a.Data[0])
	if err != nil {
		return nil, fmt.Errorf("account %s: decode data: %w", addr, err)
	}
	return &Account{Address: addr, Owner: owner, Lamports: a.Lamports, Executable: a.Executable, Data: data}, nil
}

// GetAccountInfo returns ErrAccountNotFound when the address holds no account.
func (c *Client) GetAccountInfo(ctx context.Context, addr PublicKey) (*Account, error) {
	var result struct {
		Value *accountJSON `json:"value"`
	}
	params := []any{addr.String(), map[string]any{"encoding": "base64", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return result.Value.decode(addr)
}

type Memcmp struct {
	Offset uint64 `json:"offset"`
	Bytes  string `json:"bytes"`
}

type AccountFilter struct {
	DataSize uint64  `json:"dataSize,omitempty"`
	Memcmp   *Memcmp `json:"memcmp,omitempty"`
}

func DataSizeFilter(n uint64) AccountFilter { return AccountFilter{DataSize: n} }

func MemcmpFilter(offset uint64, b []byte) AccountFilter {
	return AccountFilter{Memcmp: &Memcmp{Offset: offset, Bytes: base58.Encode(b)}}
}

// GetProgramAccounts scans all accounts owned by program that pass every filter.
func (c *Client) GetProgramAccounts(ctx context.Context, program PublicKey, filters ...AccountFilter) ([]Account, error) {
	var result []struct {
		Pubkey  string      `json:"pubkey"`
		Account accountJSON `json:"account"`
	}
	opts := map[string]any{"encoding": "base64", "commitment": c.commitment}
	if len(filters) > 0 {
		opts["filters"] = filters
	}
	if err := c.call(ctx, "getProgramAccounts", []any{program.String(), opts}, &result); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(result))
	for _, item := range result {
		addr, err := ParsePublicKey(item.Pubkey)
		if err != nil {
			return nil, err
		}
		acc, err := item.Account.decode(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	return out, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (Hash, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": c.commitment}}, &result); err != nil {
		return Hash{}, err
	}
	return ParseHash(result.Value.Blockhash)
}

func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.call(ctx, "getSlot", []any{map[string]any{"commitment": c.commitment}}, &slot)
	return slot, err
}

// SendTransaction submits a signed transaction. Preflight failures come back
// as *RPCError with the simulated error and logs in Data.
func (c *Client) SendTransaction(ctx context.Context, tx *Transaction) (Signature, error) {
	wire, err := tx.Serialize()
	if err != nil {
		return Signature{}, err
	}
	params := []any{
		base64.StdEncoding.EncodeToString(wire),
		map[string]any{"encoding": "base64", "preflightCommitment": c.commitment},
	}
	var sig string
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return Signature{}, err
	}
	return ParseSignature(sig)
}

type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
}

func (s *SignatureStatus) failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

func (c *Client) GetSignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []any{[]string{sig.String()}, map[string]any{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// ConfirmTransaction polls until sig reaches the client's commitment, fails on
// execution, or ctx ends. Status lookups that fail are retried on the next poll.
func (c *Client) ConfirmTransaction(ctx context.Context, sig Signature) error {
	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()
	for {
		status, err := c.GetSignatureStatus(ctx, sig)
		if err == nil && status != nil {
			if status.failed() {
				return &TransactionError{Signature: sig, Raw: status.Err}
			}
			if status.ConfirmationStatus.rank() >= c.commitment.rank() {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrConfirmTimeout, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SendAndConfirm builds, signs, submits and confirms one transaction paid by
// payer. The signature is returned whenever submission succeeded, even if
// confirmation did not.
func (c *Client) SendAndConfirm(ctx context.Context, payer Keypair, ixs ...Instruction) (Signature, error) {
	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return Signature{}, err
	}
	tx, err := NewTransaction(payer.PublicKey(), blockhash, ixs...)
	if err != nil {
		return Signature{}, err
	}
	if err := tx.Sign(payer); err != nil {
		return Signature{}, err
	}
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return Signature{}, err
	}
	return sig, c.ConfirmTransaction(ctx, sig)
}
