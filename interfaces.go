// Package incofund defines interfaces for interacting with a confidential
// token ledger and the services around it.
package incofund

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// NotFound is returned by API methods if the requested item does not exist.
var NotFound = errors.New("not found")

// SimulationResult is the outcome of executing a transaction without
// committing it.
type SimulationResult struct {
	Err           json.RawMessage // nil when execution succeeded
	Logs          []string
	Accounts      [][]byte // post-execution data of the requested accounts, nil if absent
	UnitsConsumed uint64
	Slot          uint64
}

// Failed reports whether the simulated execution failed.
func (r *SimulationResult) Failed() bool {
	return len(r.Err) > 0 && string(r.Err) != "null"
}

// BlockhashReader provides recent blockhashes for transaction construction.
type BlockhashReader interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// TransactionSimulator executes a transaction against the latest state and
// returns the post-execution data of the requested accounts. Signature
// verification is skipped so partially signed transactions can be simulated.
type TransactionSimulator interface {
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, accounts []solana.PublicKey) (*SimulationResult, error)
}

// TransactionSender submits signed transactions.
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// ConfirmationWaiter blocks until a submitted transaction is confirmed or has
// failed.
type ConfirmationWaiter interface {
	WaitForConfirmation(ctx context.Context, sig solana.Signature) error
}

// AccountReader reads raw account data. Absent accounts yield nil data and no
// error.
type AccountReader interface {
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// Backend wraps all ledger operations the funding client needs.
type Backend interface {
	BlockhashReader
	TransactionSimulator
	TransactionSender
	ConfirmationWaiter
	AccountReader
}

// Encryptor turns plaintext amounts into ciphertexts accepted by the
// confidential compute program.
type Encryptor interface {
	Encrypt(ctx context.Context, amount uint64) ([]byte, error)
}

// LogError is implemented by transaction errors that carry execution logs.
type LogError interface {
	error
	TxLogs() []string
}
