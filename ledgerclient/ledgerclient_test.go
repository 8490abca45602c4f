package ledgerclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcFailure struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// stubLedger answers JSON-RPC calls through per-method handlers and records
// the requests it saw.
type stubLedger struct {
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) (interface{}, *rpcFailure)
	calls    map[string][][]json.RawMessage
}

func newStub(t *testing.T) (*stubLedger, *Client) {
	t.Helper()
	s := &stubLedger{
		handlers: make(map[string]func([]json.RawMessage) (interface{}, *rpcFailure)),
		calls:    make(map[string][][]json.RawMessage),
	}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	c, err := rpc.DialHTTP(srv.URL)
	if err != nil {
		t.Fatalf("failed to dial stub: %v", err)
	}
	t.Cleanup(c.Close)
	return s, NewClient(c, Config{Commitment: CommitmentConfirmed, PollInterval: time.Millisecond})
}

func (s *stubLedger) handle(method string, fn func(params []json.RawMessage) (interface{}, *rpcFailure)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

func (s *stubLedger) requests(method string) [][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *stubLedger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.calls[req.Method] = append(s.calls[req.Method], req.Params)
	fn := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if fn == nil {
		resp["error"] = rpcFailure{Code: -32601, Message: "Method not found"}
	} else if result, failure := fn(req.Params); failure != nil {
		resp["error"] = failure
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func b64(data []byte) []string {
	return []string{base64.StdEncoding.EncodeToString(data), "base64"}
}

func testTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	payer, err := accounts.GenerateParty("payer")
	require.NoError(t, err)
	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer.PublicKey(), true, true),
	}, []byte{1, 2, 3})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	require.NoError(t, accounts.NewKeyring(payer).SignTransaction(tx, false))
	return tx
}

func TestLatestBlockhash(t *testing.T) {
	stub, client := newStub(t)
	want := solana.Hash{7, 7, 7}
	stub.handle("getLatestBlockhash", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 42},
			"value":   map[string]interface{}{"blockhash": want.String(), "lastValidBlockHeight": 300},
		}, nil
	})
	have, err := client.LatestBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, have)

	params := stub.requests("getLatestBlockhash")[0]
	require.JSONEq(t, `{"commitment":"confirmed"}`, string(params[0]))
}

func TestSimulateTransaction(t *testing.T) {
	stub, client := newStub(t)
	tx := testTransaction(t)
	present, absent := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	stub.handle("simulateTransaction", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 9},
			"value": map[string]interface{}{
				"err":           nil,
				"logs":          []string{"Program log: hello"},
				"accounts":      []interface{}{map[string]interface{}{"lamports": 1, "owner": present.String(), "data": b64([]byte{1, 2}), "executable": false}, nil},
				"unitsConsumed": 1234,
			},
		}, nil
	})
	res, err := client.SimulateTransaction(context.Background(), tx, []solana.PublicKey{present, absent})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, uint64(9), res.Slot)
	require.Equal(t, uint64(1234), res.UnitsConsumed)
	require.Equal(t, []string{"Program log: hello"}, res.Logs)
	require.Equal(t, [][]byte{{1, 2}, nil}, res.Accounts)

	params := stub.requests("simulateTransaction")[0]
	var encoded string
	require.NoError(t, json.Unmarshal(params[0], &encoded))
	want, err := encodeTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, want, encoded)

	var opts struct {
		SigVerify bool `json:"sigVerify"`
		Accounts  struct {
			Encoding  string   `json:"encoding"`
			Addresses []string `json:"addresses"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(params[1], &opts))
	require.False(t, opts.SigVerify)
	require.Equal(t, "base64", opts.Accounts.Encoding)
	require.Equal(t, []string{present.String(), absent.String()}, opts.Accounts.Addresses)
}

func TestSimulateTransactionFailure(t *testing.T) {
	stub, client := newStub(t)
	stub.handle("simulateTransaction", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6004}}},
				"logs": []string{"Program X failed: custom program error: 0x1774"},
			},
		}, nil
	})
	res, err := client.SimulateTransaction(context.Background(), testTransaction(t), nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.JSONEq(t, `{"InstructionError":[0,{"Custom":6004}]}`, string(res.Err))
	require.Nil(t, res.Accounts)
}

func TestSendTransaction(t *testing.T) {
	stub, client := newStub(t)
	tx := testTransaction(t)
	stub.handle("sendTransaction", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return tx.Signatures[0].String(), nil
	})
	sig, err := client.SendTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, tx.Signatures[0], sig)
}

func TestSendTransactionPreflightFailure(t *testing.T) {
	stub, client := newStub(t)
	logs := []string{"Program log: AnchorError occurred.", "Program X failed: custom program error: 0x7d6"}
	stub.handle("sendTransaction", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return nil, &rpcFailure{
			Code:    -32002,
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x7d6",
			Data: map[string]interface{}{
				"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 2006}}},
				"logs": logs,
			},
		}
	})
	_, err := client.SendTransaction(context.Background(), testTransaction(t))
	var serr *SendError
	require.True(t, errors.As(err, &serr), "unexpected error %v", err)
	require.Equal(t, -32002, serr.Code)
	require.Equal(t, logs, serr.Logs)
	require.JSONEq(t, `{"InstructionError":[0,{"Custom":2006}]}`, string(serr.Err))

	var le incofund.LogError
	require.True(t, errors.As(err, &le))
	require.Equal(t, logs, le.TxLogs())
}

func TestAccountData(t *testing.T) {
	stub, client := newStub(t)
	present, absent := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	stub.handle("getAccountInfo", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		var pk string
		json.Unmarshal(params[0], &pk)
		var value interface{}
		if pk == present.String() {
			value = map[string]interface{}{"lamports": 5, "owner": pk, "data": b64([]byte("payload")), "executable": false}
		}
		return map[string]interface{}{"context": map[string]interface{}{"slot": 3}, "value": value}, nil
	})
	data, err := client.AccountData(context.Background(), present)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	data, err = client.AccountData(context.Background(), absent)
	require.NoError(t, err)
	require.Nil(t, data)

	stub.handle("getMultipleAccounts", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 3},
			"value":   []interface{}{nil, map[string]interface{}{"lamports": 5, "owner": present.String(), "data": b64([]byte{9}), "executable": false}},
		}, nil
	})
	all, err := client.MultipleAccountData(context.Background(), []solana.PublicKey{absent, present})
	require.NoError(t, err)
	require.Equal(t, [][]byte{nil, {9}}, all)

	_, err = client.MultipleAccountData(context.Background(), []solana.PublicKey{absent})
	require.Error(t, err)
}

func TestWaitForConfirmation(t *testing.T) {
	stub, client := newStub(t)
	sig := testTransaction(t).Signatures[0]

	var polls atomic.Int32
	stub.handle("getSignatureStatuses", func([]json.RawMessage) (interface{}, *rpcFailure) {
		var status interface{}
		switch polls.Add(1) {
		case 1:
			status = nil
		case 2:
			status = map[string]interface{}{"slot": 10, "confirmations": 0, "err": nil, "confirmationStatus": "processed"}
		default:
			status = map[string]interface{}{"slot": 10, "confirmations": nil, "err": nil, "confirmationStatus": "finalized"}
		}
		return map[string]interface{}{"context": map[string]interface{}{"slot": 11}, "value": []interface{}{status}}, nil
	})
	require.NoError(t, client.WaitForConfirmation(context.Background(), sig))
	require.Equal(t, int32(3), polls.Load())
}

func TestWaitForConfirmationFailure(t *testing.T) {
	stub, client := newStub(t)
	sig := testTransaction(t).Signatures[0]
	stub.handle("getSignatureStatuses", func([]json.RawMessage) (interface{}, *rpcFailure) {
		status := map[string]interface{}{"slot": 10, "err": map[string]interface{}{"InstructionError": []interface{}{0, "InvalidArgument"}}, "confirmationStatus": "confirmed"}
		return map[string]interface{}{"context": map[string]interface{}{"slot": 11}, "value": []interface{}{status}}, nil
	})
	err := client.WaitForConfirmation(context.Background(), sig)
	require.ErrorIs(t, err, ErrTransactionFailed)
}

func TestWaitForConfirmationTimeout(t *testing.T) {
	stub, client := newStub(t)
	sig := testTransaction(t).Signatures[0]
	stub.handle("getSignatureStatuses", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{"context": map[string]interface{}{"slot": 11}, "value": []interface{}{nil}}, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.WaitForConfirmation(ctx, sig)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAirdropAndBalance(t *testing.T) {
	stub, client := newStub(t)
	pk := solana.NewWallet().PublicKey()
	sig := testTransaction(t).Signatures[0]
	stub.handle("requestAirdrop", func(params []json.RawMessage) (interface{}, *rpcFailure) {
		return sig.String(), nil
	})
	stub.handle("getBalance", func([]json.RawMessage) (interface{}, *rpcFailure) {
		return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": 2000000000}, nil
	})
	have, err := client.RequestAirdrop(context.Background(), pk, 2000000000)
	require.NoError(t, err)
	require.Equal(t, sig, have)

	params := stub.requests("requestAirdrop")[0]
	require.JSONEq(t, `"`+pk.String()+`"`, string(params[0]))
	require.JSONEq(t, `2000000000`, string(params[1]))

	lamports, err := client.Balance(context.Background(), pk)
	require.NoError(t, err)
	require.Equal(t, uint64(2000000000), lamports)
}

func TestUnknownMethodIsRPCError(t *testing.T) {
	_, client := newStub(t)
	_, err := client.LatestBlockhash(context.Background())
	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, -32601, rpcErr.ErrorCode())
}
