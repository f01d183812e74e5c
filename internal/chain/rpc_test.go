package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls with the result or error returned by handle.
func fakeNode(t *testing.T, handle func(call rpcCall) (any, *RPCError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode rpc body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rpcErr := handle(call)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAccountInfo(t *testing.T) {
	owner := testKey(9)
	present := testKey(3)
	srv := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		if call.Method != "getAccountInfo" {
			t.Errorf("method = %s", call.Method)
		}
		var addr string
		_ = json.Unmarshal(call.Params[0], &addr)
		if addr != present.String() {
			return map[string]any{"context": map[string]any{"slot": 1}, "value": nil}, nil
		}
		return map[string]any{
			"context": map[string]any{"slot": 1},
			"value": map[string]any{
				"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
				"owner":      owner.String(),
				"lamports":   uint64(5000),
				"executable": false,
				"rentEpoch":  uint64(18446744073709551615),
			},
		}, nil
	})
	client := NewClient(srv.URL)

	acc, err := client.GetAccountInfo(context.Background(), present)
	if err != nil {
		t.Fatalf("GetAccountInfo() error = %v", err)
	}
	if acc.Owner != owner || acc.Lamports != 5000 || len(acc.Data) != 3 {
		t.Fatalf("unexpected account: %+v", acc)
	}

	_, err = client.GetAccountInfo(context.Background(), testKey(4))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("missing account err = %v, want ErrAccountNotFound", err)
	}
}

func TestGetProgramAccountsSendsFilters(t *testing.T) {
	program := testKey(9)
	var filters []map[string]any
	srv := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		var opts struct {
			Filters []map[string]any `json:"filters"`
		}
		_ = json.Unmarshal(call.Params[1], &opts)
		filters = opts.Filters
		return []map[string]any{{
			"pubkey": testKey(5).String(),
			"account": map[string]any{
				"data":  []string{base64.StdEncoding.EncodeToString([]byte{9}), "base64"},
				"owner": program.String(),
			},
		}}, nil
	})

	accs, err := NewClient(srv.URL).GetProgramAccounts(context.Background(), program,
		DataSizeFilter(59), MemcmpFilter(40, []byte{7, 0, 0, 0, 0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("GetProgramAccounts() error = %v", err)
	}
	if len(accs) != 1 || accs[0].Address != testKey(5) {
		t.Fatalf("unexpected accounts: %+v", accs)
	}
	if len(filters) != 2 {
		t.Fatalf("filters = %v", filters)
	}
	if filters[0]["dataSize"] != float64(59) {
		t.Fatalf("dataSize filter = %v", filters[0])
	}
	memcmp, _ := filters[1]["memcmp"].(map[string]any)
	if memcmp["offset"] != float64(40) || memcmp["bytes"] != "2Aui6ejTFsd" {
		t.Fatalf("memcmp filter = %v", memcmp)
	}
}

func TestSendTransactionPreflightError(t *testing.T) {
	srv := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		return nil, &RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1775",
			Data:    json.RawMessage(`{"err":{"InstructionError":[0,{"Custom":6005}]},"logs":["Program log: AnchorError occurred. Error Code: AlreadySettled."]}`),
		}
	})
	payer, _ := GenerateKeypair()
	tx, err := NewTransaction(payer.PublicKey(), Hash{1}, Instruction{ProgramID: testKey(9)})
	if err != nil {
		t.Fatalf("NewTransaction() error = %v", err)
	}
	if err := tx.Sign(payer); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err = NewClient(srv.URL).SendTransaction(context.Background(), tx)
	code, ok := CustomErrorCode(err)
	if !ok || code != 6005 {
		t.Fatalf("CustomErrorCode() = %d, %v; want 6005", code, ok)
	}
	logs := ErrorLogs(err)
	if len(logs) != 1 {
		t.Fatalf("logs = %v", logs)
	}
	if IsTransient(err) {
		t.Fatal("program rejection reported as transient")
	}
}

func TestConfirmTransaction(t *testing.T) {
	var polls atomic.Int32
	srv := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		if polls.Add(1) < 3 {
			return map[string]any{"value": []any{nil}}, nil
		}
		return map[string]any{"value": []any{map[string]any{"slot": 10, "err": nil, "confirmationStatus": "confirmed"}}}, nil
	})
	client := NewClient(srv.URL, WithConfirmPoll(5*time.Millisecond))
	if err := client.ConfirmTransaction(context.Background(), Signature{1}); err != nil {
		t.Fatalf("ConfirmTransaction() error = %v", err)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestConfirmTransactionFailureAndTimeout(t *testing.T) {
	failed := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		return map[string]any{"value": []any{map[string]any{
			"slot": 10, "err": map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6004}}}, "confirmationStatus": "processed",
		}}}, nil
	})
	err := NewClient(failed.URL, WithConfirmPoll(5*time.Millisecond)).ConfirmTransaction(context.Background(), Signature{1})
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("err = %v, want *TransactionError", err)
	}
	if code, ok := CustomErrorCode(err); !ok || code != 6004 {
		t.Fatalf("CustomErrorCode() = %d, %v; want 6004", code, ok)
	}

	pending := fakeNode(t, func(call rpcCall) (any, *RPCError) {
		return map[string]any{"value": []any{nil}}, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = NewClient(pending.URL, WithConfirmPoll(5*time.Millisecond)).ConfirmTransaction(ctx, Signature{1})
	if !errors.Is(err, ErrConfirmTimeout) || !IsTransient(err) {
		t.Fatalf("err = %v, want transient ErrConfirmTimeout", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"http 503", &HTTPStatusError{StatusCode: 503}, true},
		{"http 429", &HTTPStatusError{StatusCode: 429}, true},
		{"http 400", &HTTPStatusError{StatusCode: 400}, false},
		{"node unhealthy", &RPCError{Code: -32005}, true},
		{"blockhash not found", &RPCError{Code: -32002, Data: json.RawMessage(`{"err":"BlockhashNotFound"}`)}, true},
		{"program error", &RPCError{Code: -32002, Data: json.RawMessage(`{"err":{"InstructionError":[0,{"Custom":3012}]}}`)}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: IsTransient() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHealthStatus(t *testing.T) {
	srv := fakeNode(t, func(call rpcCall) (any, *RPCError) { return 1234, nil })
	h := NewClient(srv.URL).Health(context.Background())
	if h.Status != HealthHealthy || h.Slot != 1234 {
		t.Fatalf("unexpected health: %+v", h)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	h = NewClient(down.URL).Health(context.Background())
	if h.Status != HealthDown || h.Error == "" {
		t.Fatalf("unexpected health: %+v", h)
	}
}
