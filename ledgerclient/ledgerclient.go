// Package ledgerclient provides a client for the ledger JSON-RPC API.
package ledgerclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
)

// Commitment is the ledger confirmation level a request observes.
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
	}
	return 0
}

// Config tunes the client.
type Config struct {
	Commitment   Commitment
	PollInterval time.Duration // confirmation polling period
}

// DefaultConfig contains the default client settings.
var DefaultConfig = Config{
	Commitment:   CommitmentConfirmed,
	PollInterval: 500 * time.Millisecond,
}

// Client defines typed wrappers for the ledger RPC API. It implements
// incofund.Backend.
type Client struct {
	c   *rpc.Client
	cfg Config
}

var _ incofund.Backend = (*Client)(nil)

// Dial connects a client to the given URL.
func Dial(rawurl string) (*Client, error) {
	return DialContext(context.Background(), rawurl)
}

func DialContext(ctx context.Context, rawurl string) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return NewClient(c, DefaultConfig), nil
}

// NewClient creates a client that uses the given RPC client.
func NewClient(c *rpc.Client, cfg Config) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = DefaultConfig.Commitment
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	return &Client{c: c, cfg: cfg}
}

func (lc *Client) Close() {
	lc.c.Close()
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type commitmentArg struct {
	Commitment Commitment `json:"commitment,omitempty"`
}

// rpcAccount is an account as returned with base64 encoding.
type rpcAccount struct {
	Lamports   uint64    `json:"lamports"`
	Owner      string    `json:"owner"`
	Data       [2]string `json:"data"` // [payload, encoding]
	Executable bool      `json:"executable"`
}

func (a *rpcAccount) decode() ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	if a.Data[1] != "base64" {
		return nil, fmt.Errorf("ledgerclient: unexpected account encoding %q", a.Data[1])
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("ledgerclient: encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// LatestBlockhash returns the most recent blockhash at the configured
// commitment.
func (lc *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var raw struct {
		Context rpcContext `json:"context"`
		Value   struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := lc.c.CallContext(ctx, &raw, "getLatestBlockhash", commitmentArg{lc.cfg.Commitment}); err != nil {
		return solana.Hash{}, err
	}
	return solana.HashFromBase58(raw.Value.Blockhash)
}

// SimulateTransaction executes tx without committing it and returns the
// post-execution data of the given accounts.
func (lc *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction, accounts []solana.PublicKey) (*incofund.SimulationResult, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, len(accounts))
	for i, pk := range accounts {
		addresses[i] = pk.String()
	}
	opts := map[string]interface{}{
		"encoding":   "base64",
		"sigVerify":  false,
		"commitment": lc.cfg.Commitment,
	}
	if len(addresses) > 0 {
		opts["accounts"] = map[string]interface{}{
			"encoding":  "base64",
			"addresses": addresses,
		}
	}
	var raw struct {
		Context rpcContext `json:"context"`
		Value   struct {
			Err           json.RawMessage `json:"err"`
			Logs          []string        `json:"logs"`
			Accounts      []*rpcAccount   `json:"accounts"`
			UnitsConsumed uint64          `json:"unitsConsumed"`
		} `json:"value"`
	}
	if err := lc.c.CallContext(ctx, &raw, "simulateTransaction", encoded, opts); err != nil {
		return nil, err
	}
	res := &incofund.SimulationResult{
		Logs:          raw.Value.Logs,
		UnitsConsumed: raw.Value.UnitsConsumed,
		Slot:          raw.Context.Slot,
	}
	if len(raw.Value.Err) > 0 && string(raw.Value.Err) != "null" {
		res.Err = raw.Value.Err
	}
	for _, acc := range raw.Value.Accounts {
		data, err := acc.decode()
		if err != nil {
			return nil, err
		}
		res.Accounts = append(res.Accounts, data)
	}
	log.Trace("Simulated transaction", "slot", res.Slot, "units", res.UnitsConsumed, "failed", res.Failed())
	return res, nil
}

// SendTransaction submits a signed transaction. A preflight failure is
// returned as *SendError carrying the execution logs.
func (lc *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return solana.Signature{}, err
	}
	opts := map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": lc.cfg.Commitment,
	}
	var sig string
	if err := lc.c.CallContext(ctx, &sig, "sendTransaction", encoded, opts); err != nil {
		return solana.Signature{}, newSendError(err)
	}
	return solana.SignatureFromBase58(sig)
}

// AccountData returns the raw data of account, or nil if it does not exist.
func (lc *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	var raw struct {
		Context rpcContext  `json:"context"`
		Value   *rpcAccount `json:"value"`
	}
	opts := map[string]interface{}{"encoding": "base64", "commitment": lc.cfg.Commitment}
	if err := lc.c.CallContext(ctx, &raw, "getAccountInfo", account.String(), opts); err != nil {
		return nil, err
	}
	return raw.Value.decode()
}

// MultipleAccountData returns the raw data of several accounts in one
// request. Absent accounts yield nil entries.
func (lc *Client) MultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error) {
	addresses := make([]string, len(accounts))
	for i, pk := range accounts {
		addresses[i] = pk.String()
	}
	var raw struct {
		Context rpcContext    `json:"context"`
		Value   []*rpcAccount `json:"value"`
	}
	opts := map[string]interface{}{"encoding": "base64", "commitment": lc.cfg.Commitment}
	if err := lc.c.CallContext(ctx, &raw, "getMultipleAccounts", addresses, opts); err != nil {
		return nil, err
	}
	if len(raw.Value) != len(accounts) {
		return nil, fmt.Errorf("ledgerclient: requested %d accounts, got %d", len(accounts), len(raw.Value))
	}
	out := make([][]byte, len(accounts))
	for i, acc := range raw.Value {
		data, err := acc.decode()
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// SignatureStatus is the processing status of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
}

// Failed reports whether the transaction executed with an error.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// SignatureStatuses returns the status of each signature; unknown signatures
// yield nil entries.
func (lc *Client) SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.String()
	}
	var raw struct {
		Context rpcContext         `json:"context"`
		Value   []*SignatureStatus `json:"value"`
	}
	opts := map[string]interface{}{"searchTransactionHistory": true}
	if err := lc.c.CallContext(ctx, &raw, "getSignatureStatuses", encoded, opts); err != nil {
		return nil, err
	}
	return raw.Value, nil
}

// ErrTransactionFailed is returned when a confirmed transaction executed
// with an error.
var ErrTransactionFailed = errors.New("ledgerclient: transaction failed")

// WaitForConfirmation polls the status of sig until it reaches the
// configured commitment, fails, or ctx expires.
func (lc *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(lc.cfg.PollInterval)
	defer ticker.Stop()

	for {
		statuses, err := lc.SignatureStatuses(ctx, sig)
		if err != nil {
			return err
		}
		if len(statuses) == 1 && statuses[0] != nil {
			status := statuses[0]
			if status.Failed() {
				return fmt.Errorf("%w: %s: %s", ErrTransactionFailed, sig, status.Err)
			}
			if status.ConfirmationStatus.rank() >= lc.cfg.Commitment.rank() {
				log.Debug("Transaction confirmed", "sig", sig, "slot", status.Slot, "status", status.ConfirmationStatus)
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ledgerclient: waiting for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// RequestAirdrop asks the ledger faucet for lamports.
func (lc *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig string
	if err := lc.c.CallContext(ctx, &sig, "requestAirdrop", account.String(), lamports, commitmentArg{lc.cfg.Commitment}); err != nil {
		return solana.Signature{}, err
	}
	return solana.SignatureFromBase58(sig)
}

// Balance returns the lamport balance of account.
func (lc *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var raw struct {
		Context rpcContext `json:"context"`
		Value   uint64     `json:"value"`
	}
	if err := lc.c.CallContext(ctx, &raw, "getBalance", account.String(), commitmentArg{lc.cfg.Commitment}); err != nil {
		return 0, err
	}
	return raw.Value, nil
}
