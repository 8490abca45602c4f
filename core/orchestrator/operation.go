package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/bind"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/resolve"
)

// Intent is what the caller asked for, before any ledger interaction.
type Intent struct {
	Kind       Kind
	Amount     uint64
	Ciphertext []byte
	Signer     *accounts.Party
	Accounts   []solana.PublicKey // accounts the operation mutates
}

// Transition is one entry of an operation's state history.
type Transition struct {
	From, To State
	Time     time.Time
}

// Operation tracks one intent through resolution, binding and submission.
// A failed operation is never resumed; a new one must be built.
type Operation struct {
	ID     uuid.UUID
	Intent Intent

	Resolution *resolve.Resolution
	Bindings   bind.Bindings
	Signature  solana.Signature

	mu       sync.Mutex
	state    State
	history  []Transition
	err      error
	tx       *solana.Transaction
	base     map[solana.PublicKey]snapshot // handles observed before resolution
	expected map[solana.PublicKey]snapshot // handles the operation produces
}

// snapshot is the handle an account held, or is expected to hold.
type snapshot struct {
	handle  handle.Handle
	total   bool // campaign total rather than balance
	present bool
}

func newOperation(intent Intent) *Operation {
	return &Operation{
		ID:       uuid.New(),
		Intent:   intent,
		state:    StateBuilding,
		base:     make(map[solana.PublicKey]snapshot),
		expected: make(map[solana.PublicKey]snapshot),
	}
}

func (op *Operation) Kind() Kind { return op.Intent.Kind }

func (op *Operation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// History returns the transitions the operation went through.
func (op *Operation) History() []Transition {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]Transition(nil), op.history...)
}

// Err returns the error that failed the operation.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// Expected returns the handle the operation leaves in a balance account.
func (op *Operation) Expected(account solana.PublicKey) (handle.Handle, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	s, ok := op.expected[account]
	if !ok || s.total {
		return handle.Handle{}, false
	}
	return s.handle, true
}

// ExpectedTotal returns the running total the operation leaves in a
// campaign account.
func (op *Operation) ExpectedTotal(funding solana.PublicKey) (handle.Handle, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	s, ok := op.expected[funding]
	if !ok || !s.total {
		return handle.Handle{}, false
	}
	return s.handle, true
}

// Transaction returns the signed transaction once the operation is prepared.
func (op *Operation) Transaction() *solana.Transaction {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.tx
}

func (op *Operation) String() string {
	return fmt.Sprintf("%s %s [%s]", op.Intent.Kind, op.ID, op.State())
}

func (op *Operation) transition(next State) error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, op.state, next)
	}
	op.history = append(op.history, Transition{From: op.state, To: next, Time: time.Now()})
	log.Trace("Operation transition", "id", op.ID, "kind", op.Intent.Kind, "from", op.state, "to", next)
	op.state = next
	return nil
}

// fail moves the operation to the failed state and returns err.
func (op *Operation) fail(err error) error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.Terminal() {
		return err
	}
	op.history = append(op.history, Transition{From: op.state, To: StateFailed, Time: time.Now()})
	op.state = StateFailed
	op.err = err
	failedMeter.Mark(1)
	log.Debug("Operation failed", "id", op.ID, "kind", op.Intent.Kind, "err", err)
	return err
}
