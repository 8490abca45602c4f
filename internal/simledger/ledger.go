// Package simledger is an in-memory ledger running simulated versions of the
// confidential token program and the funding program, together with an
// attested decryption oracle over the same state. It implements the
// incofund.Backend interface and is used to exercise the client end to end
// without a network.
package simledger

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/params"
)

var (
	ErrAlreadyProcessed = errors.New("simledger: transaction already processed")
	ErrBlockhashUnknown = errors.New("simledger: blockhash not found")
	ErrSignature        = errors.New("simledger: signature verification failed")
)

// Config selects the program ids the ledger executes and how the oracle
// behaves.
type Config struct {
	TokenProgram   solana.PublicKey
	FundingProgram solana.PublicKey
	Lightning      solana.PublicKey

	// IndexLag is the number of decryption requests answered with "not
	// found" for every newly committed handle before the oracle serves it.
	IndexLag int

	Now func() time.Time
}

// DefaultConfig uses the well-known funding and compute program ids and a
// fixed token program id.
var DefaultConfig = Config{
	TokenProgram:   syntheticKey("simledger/token-program"),
	FundingProgram: params.FundingProgramID,
	Lightning:      params.IncoLightningProgramID,
	Now:            time.Now,
}

func syntheticKey(seed string) solana.PublicKey {
	return solana.PublicKeyFromBytes(hashBytes([]byte(seed)))
}

func hashBytes(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// Network returns a network description pointing at the ledger's programs.
func (c Config) Network() *params.Network {
	return &params.Network{
		Name:             "simulated",
		RPCEndpoint:      "sim://",
		TokenProgram:     c.TokenProgram,
		FundingProgram:   c.FundingProgram,
		LightningProgram: c.Lightning,
	}
}

// TxError is returned by SendTransaction when execution fails.
type TxError struct {
	Err  json.RawMessage
	Logs []string
}

func (e *TxError) Error() string {
	if pe := program.DecodeError(e.Err, e.Logs); pe != nil {
		return "transaction failed: " + pe.Error()
	}
	return "transaction failed: " + string(e.Err)
}

func (e *TxError) TxLogs() []string { return e.Logs }

// Ledger is the simulated ledger. It is safe for concurrent use.
type Ledger struct {
	cfg Config

	mu          sync.Mutex
	st          *state
	slot        uint64
	blockhash   solana.Hash
	blockhashes map[solana.Hash]struct{}
	processed   map[solana.Signature]uint64 // signature -> slot
	lag         map[handle.Handle]int
	nonces      map[string]struct{}
}

var (
	_ incofund.Backend   = (*Ledger)(nil)
	_ incofund.Encryptor = Encryptor{}
)

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Ledger{
		cfg:         cfg,
		st:          newState(),
		blockhashes: make(map[solana.Hash]struct{}),
		processed:   make(map[solana.Signature]uint64),
		lag:         make(map[handle.Handle]int),
		nonces:      make(map[string]struct{}),
	}
	l.advance()
	return l
}

func (l *Ledger) Config() Config {
	return l.cfg
}

// advance moves to the next slot. Callers hold l.mu.
func (l *Ledger) advance() {
	l.slot++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], l.slot)
	l.blockhash = solana.HashFromBytes(hashBytes(append([]byte("simledger/blockhash/"), seed[:]...)))
	l.blockhashes[l.blockhash] = struct{}{}
}

func (l *Ledger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockhash, nil
}

// SimulateTransaction executes tx against a copy of the current state.
// Signatures and the blockhash are not checked.
func (l *Ledger) SimulateTransaction(ctx context.Context, tx *solana.Transaction, accounts []solana.PublicKey) (*incofund.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.st.copy()
	rcpt := (&execution{ledger: l, st: st}).run(tx)
	res := &incofund.SimulationResult{
		Err:           rcpt.err,
		Logs:          rcpt.logs,
		UnitsConsumed: rcpt.units,
		Slot:          l.slot,
	}
	if rcpt.err == nil {
		res.Accounts = make([][]byte, len(accounts))
		for i, pk := range accounts {
			if data := st.accounts[pk]; len(data) > 0 {
				res.Accounts[i] = append([]byte(nil), data...)
			}
		}
	}
	return res, nil
}

// SendTransaction verifies and executes tx, committing its effects on
// success. A failed transaction leaves the state untouched and returns a
// *TxError carrying the execution logs.
func (l *Ledger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if err := verifySignatures(tx); err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signatures[0]

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.processed[sig]; ok {
		return solana.Signature{}, ErrAlreadyProcessed
	}
	if _, ok := l.blockhashes[tx.Message.RecentBlockhash]; !ok {
		return solana.Signature{}, ErrBlockhashUnknown
	}
	st := l.st.copy()
	rcpt := (&execution{ledger: l, st: st}).run(tx)
	if rcpt.err != nil {
		log.Debug("Simulated transaction failed", "sig", sig, "err", string(rcpt.err))
		return solana.Signature{}, &TxError{Err: rcpt.err, Logs: rcpt.logs}
	}
	for _, h := range st.fresh {
		if l.cfg.IndexLag > 0 {
			l.lag[h] = l.cfg.IndexLag
		}
	}
	st.fresh = nil
	l.st = st
	l.processed[sig] = l.slot
	log.Debug("Committed simulated transaction", "sig", sig, "slot", l.slot, "units", rcpt.units)
	l.advance()
	return sig, nil
}

func verifySignatures(tx *solana.Transaction) error {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n == 0 || len(tx.Signatures) != n || len(tx.Message.AccountKeys) < n {
		return fmt.Errorf("%w: want %d signatures, have %d", ErrSignature, n, len(tx.Signatures))
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key := tx.Message.AccountKeys[i]
		if !ed25519.Verify(ed25519.PublicKey(key[:]), msg, tx.Signatures[i][:]) {
			return fmt.Errorf("%w: %s", ErrSignature, key)
		}
	}
	return nil
}

// WaitForConfirmation returns once sig has been committed. Commits are
// synchronous, so an unknown signature is reported as not found.
func (l *Ledger) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.processed[sig]; !ok {
		return fmt.Errorf("simledger: transaction %s: %w", sig, incofund.NotFound)
	}
	return nil
}

func (l *Ledger) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	data := l.st.accounts[account]
	if len(data) == 0 {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// SetAccountData overwrites the raw data of an account.
func (l *Ledger) SetAccountData(account solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.accounts[account] = append([]byte(nil), data...)
}

// Slot returns the slot the next transaction commits in.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// Plaintext returns the committed plaintext behind h.
func (l *Ledger) Plaintext(h handle.Handle) (*uint256.Int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.st.values[h]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(v), true
}

// Allowed reports whether party may decrypt h.
func (l *Ledger) Allowed(h handle.Handle, party solana.PublicKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.isAllowed(h, party)
}
