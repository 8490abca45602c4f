package attest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/handle"
)

// stubOracle answers decryption requests through fn after checking the
// request signature.
func stubOracle(t *testing.T, fn func(party string, handles []handle.Handle) (int, DecryptResponse)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/decrypt" {
			http.NotFound(w, r)
			return
		}
		var req DecryptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		addr, handles, err := req.Verify()
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(DecryptResponse{Error: err.Error()})
			return
		}
		status, resp := fn(addr.String(), handles)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	cfg := DefaultConfig
	cfg.Endpoint = endpoint
	cfg.RateLimit = 0
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	tests := map[string]Outcome{
		"Address X is not allowed to decrypt handle 5": OutcomeUnauthorized,
		"ciphertext not found":                         OutcomeNotFound,
		"Ciphertext for handle 7 is not allowed":       OutcomeUnauthorized, // permission wins
		"internal server error":                        OutcomeUnclassified,
		"":                                             OutcomeUnclassified,
	}
	for msg, want := range tests {
		if got := Classify(msg); got != want {
			t.Errorf("Classify(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestDecryptOutcomes(t *testing.T) {
	party, _ := accounts.GenerateParty("admin")
	srv, _ := stubOracle(t, func(addr string, hs []handle.Handle) (int, DecryptResponse) {
		switch hs[0] {
		case handle.FromUint64(1):
			return http.StatusOK, DecryptResponse{Plaintexts: []string{"100000000000"}}
		case handle.FromUint64(2):
			return http.StatusForbidden, DecryptResponse{Error: "address " + addr + " is not allowed to decrypt"}
		case handle.FromUint64(3):
			return http.StatusNotFound, DecryptResponse{Error: "ciphertext not found"}
		default:
			return http.StatusInternalServerError, DecryptResponse{Error: "boom"}
		}
	})
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	res := c.Decrypt(ctx, handle.FromUint64(1), party)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.NoError(t, res.Err())
	amount, err := res.Amount()
	require.NoError(t, err)
	require.Equal(t, uint64(100_000_000_000), amount)

	res = c.Decrypt(ctx, handle.FromUint64(2), party)
	require.Equal(t, OutcomeUnauthorized, res.Outcome)
	require.True(t, errors.Is(res.Err(), ErrUnauthorized))

	res = c.Decrypt(ctx, handle.FromUint64(3), party)
	require.Equal(t, OutcomeNotFound, res.Outcome)
	require.True(t, errors.Is(res.Err(), ErrNotFound))

	res = c.Decrypt(ctx, handle.FromUint64(4), party)
	require.Equal(t, OutcomeUnclassified, res.Outcome)
	var uerr *UnclassifiedError
	require.True(t, errors.As(res.Err(), &uerr))
	require.Equal(t, "boom", uerr.Detail)
}

func TestTransportFailureIsUnclassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	party, _ := accounts.GenerateParty("")
	res := newTestClient(t, url).Decrypt(context.Background(), handle.FromUint64(1), party)
	require.Equal(t, OutcomeUnclassified, res.Outcome)
}

func TestCacheServesRepeatedDecrypts(t *testing.T) {
	party, _ := accounts.GenerateParty("")
	srv, calls := stubOracle(t, func(string, []handle.Handle) (int, DecryptResponse) {
		return http.StatusOK, DecryptResponse{Plaintexts: []string{"42"}}
	})
	c := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		res := c.Decrypt(context.Background(), handle.FromUint64(9), party)
		require.Equal(t, "42", res.Plaintext)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(calls))

	// A different party is a different cache entry.
	other, _ := accounts.GenerateParty("")
	c.Decrypt(context.Background(), handle.FromUint64(9), other)
	require.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestDecryptManyOrder(t *testing.T) {
	party, _ := accounts.GenerateParty("")
	srv, _ := stubOracle(t, func(_ string, hs []handle.Handle) (int, DecryptResponse) {
		out := make([]string, len(hs))
		for i, h := range hs {
			out[i] = h.String() + "0"
		}
		return http.StatusOK, DecryptResponse{Plaintexts: out}
	})
	c := newTestClient(t, srv.URL)
	res := c.DecryptMany(context.Background(), []handle.Handle{handle.FromUint64(3), handle.FromUint64(1), handle.FromUint64(2)}, party)
	require.Equal(t, "30", res[0].Plaintext)
	require.Equal(t, "10", res[1].Plaintext)
	require.Equal(t, "20", res[2].Plaintext)
}

func TestWaitDecryptRetriesOnlyNotFound(t *testing.T) {
	party, _ := accounts.GenerateParty("")
	var lag int32 = 2
	srv, calls := stubOracle(t, func(string, []handle.Handle) (int, DecryptResponse) {
		if atomic.AddInt32(&lag, -1) >= 0 {
			return http.StatusNotFound, DecryptResponse{Error: "ciphertext not found"}
		}
		return http.StatusOK, DecryptResponse{Plaintexts: []string{"7"}}
	})
	c := newTestClient(t, srv.URL)
	policy := RetryPolicy{Attempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	res := c.WaitDecrypt(context.Background(), handle.FromUint64(1), party, policy)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Equal(t, int32(3), atomic.LoadInt32(calls))

	denied, deniedCalls := stubOracle(t, func(string, []handle.Handle) (int, DecryptResponse) {
		return http.StatusForbidden, DecryptResponse{Error: "not allowed"}
	})
	res = newTestClient(t, denied.URL).WaitDecrypt(context.Background(), handle.FromUint64(1), party, policy)
	require.Equal(t, OutcomeUnauthorized, res.Outcome)
	require.Equal(t, int32(1), atomic.LoadInt32(deniedCalls))
}

func TestWaitDecryptBounded(t *testing.T) {
	party, _ := accounts.GenerateParty("")
	srv, calls := stubOracle(t, func(string, []handle.Handle) (int, DecryptResponse) {
		return http.StatusNotFound, DecryptResponse{Error: "ciphertext not found"}
	})
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
	res := newTestClient(t, srv.URL).WaitDecrypt(context.Background(), handle.FromUint64(1), party, policy)
	require.Equal(t, OutcomeNotFound, res.Outcome)
	require.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("attempt %d: have %v want %v", i+1, got, w)
		}
	}
}

func TestRequestSignature(t *testing.T) {
	party, _ := accounts.GenerateParty("")
	hs := []handle.Handle{handle.FromUint64(5), handle.Max()}
	req, err := NewDecryptRequest("nonce-1", hs, party)
	require.NoError(t, err)

	addr, got, err := req.Verify()
	require.NoError(t, err)
	require.Equal(t, party.PublicKey(), addr)
	require.Equal(t, hs, got)

	req.Handles[0] = "6"
	_, _, err = req.Verify()
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"100000000000", 9, "100.000000000"},
		{"5", 9, "0.000000005"},
		{"0", 9, "0.000000000"},
		{"1234", 0, "1234"},
		{"340282366920938463463374607431768211455", 9, "340282366920938463463374607431.768211455"},
	}
	for _, tt := range tests {
		got, err := FormatAmount(tt.in, tt.decimals)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
	_, err := FormatAmount("abc", 9)
	require.Error(t, err)
}

func TestEncryptClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EncryptRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Plaintext != "10" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(EncryptResponse{Error: "unexpected plaintext"})
			return
		}
		w.Write([]byte(`{"ciphertext":"0x0a00ff"}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig
	cfg.Endpoint = srv.URL
	enc, err := NewEncryptClient(cfg, nil)
	require.NoError(t, err)
	ct, err := enc.Encrypt(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 0x00, 0xff}, ct)

	_, err = enc.Encrypt(context.Background(), 11)
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		fail bool
	}{
		{in: "10", want: 10_000_000_000},
		{in: "10.5", want: 10_500_000_000},
		{in: ".000000001", want: 1},
		{in: "0", want: 0},
		{in: " 1.25 ", want: 1_250_000_000},
		{in: "1.0000000001", fail: true},
		{in: "1e9", fail: true},
		{in: "-1", fail: true},
		{in: "", fail: true},
		{in: ".", fail: true},
		{in: "18446744073.709551616", fail: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, 9)
		if tt.fail {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
