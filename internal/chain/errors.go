package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrConfirmTimeout  = errors.New("transaction confirmation timed out")
)

// Node-side JSON-RPC codes that say nothing about the transaction itself.
const (
	codeBlockNotAvailable        = -32004
	codeNodeUnhealthy            = -32005
	codeBlockStatusNotAvailable  = -32014
	codeMinContextSlotNotReached = -32016
)

// RPCError is a JSON-RPC error object. Preflight failures carry the simulated
// transaction error and program logs in Data.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransactionError is a transaction that landed but failed on execution.
type TransactionError struct {
	Signature Signature
	Raw       json.RawMessage
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, string(e.Raw))
}

type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("rpc http status %d: %s", e.StatusCode, e.Body)
}

// CustomErrorCode extracts the program's custom error code from a failed
// submission, if the node reported one.
func CustomErrorCode(err error) (uint32, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && len(rpcErr.Data) > 0 {
		if r := gjson.GetBytes(rpcErr.Data, "err.InstructionError.1.Custom"); r.Exists() {
			return uint32(r.Uint()), true
		}
	}
	var txErr *TransactionError
	if errors.As(err, &txErr) && len(txErr.Raw) > 0 {
		if r := gjson.GetBytes(txErr.Raw, "InstructionError.1.Custom"); r.Exists() {
			return uint32(r.Uint()), true
		}
	}
	return 0, false
}

// ErrorLogs returns the program logs attached to a preflight failure.
func ErrorLogs(err error) []string {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || len(rpcErr.Data) == 0 {
		return nil
	}
	var logs []string
	for _, line := range gjson.GetBytes(rpcErr.Data, "logs").Array() {
		logs = append(logs, line.String())
	}
	return logs
}

// IsTransient reports whether err came from the transport or an unhealthy node
// rather than from the program rejecting the transaction.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrConfirmTimeout) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeBlockNotAvailable, codeNodeUnhealthy, codeBlockStatusNotAvailable, codeMinContextSlotNotReached:
			return true
		}
		return gjson.GetBytes(rpcErr.Data, "err").String() == "BlockhashNotFound"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
