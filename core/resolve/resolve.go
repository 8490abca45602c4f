// Package resolve discovers the handles an operation will produce by
// simulating it against the latest ledger state.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
)

var (
	ErrSimulationFailed = errors.New("resolve: simulation failed")
	ErrAccountAbsent    = errors.New("resolve: account absent after simulation")
	ErrNotRequested     = errors.New("resolve: account not requested")
	ErrNoInstructions   = errors.New("resolve: no instructions")
)

// Backend is the subset of ledger functionality the resolver relies on.
type Backend interface {
	incofund.BlockhashReader
	incofund.TransactionSimulator
}

// Request describes a transaction to resolve and the accounts whose
// post-execution handles are wanted.
type Request struct {
	Instructions []solana.Instruction
	FeePayer     solana.PublicKey
	Signers      *accounts.Keyring // may miss some signers

	Balances []solana.PublicKey // balance accounts, decoded for their amount handle
	Fundings []solana.PublicKey // campaign accounts, decoded for their running total
}

// Resolver performs the simulation phase of a two-phase operation. It never
// submits anything.
type Resolver struct {
	backend Backend
}

func New(backend Backend) *Resolver {
	return &Resolver{backend: backend}
}

// Resolve simulates the request and extracts the handles found in the
// post-execution snapshots. The result is only accurate for the ledger state
// at resolution time.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if len(req.Instructions) == 0 {
		return nil, ErrNoInstructions
	}
	start := time.Now()
	defer resolveTimer.UpdateSince(start)

	blockhash, err := r.backend.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve: latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(req.Instructions, blockhash, solana.TransactionPayer(req.FeePayer))
	if err != nil {
		return nil, fmt.Errorf("resolve: build transaction: %w", err)
	}
	signers := req.Signers
	if signers == nil {
		signers = accounts.NewKeyring()
	}
	if err := signers.SignTransaction(tx, true); err != nil {
		return nil, fmt.Errorf("resolve: sign: %w", err)
	}
	wanted := make([]solana.PublicKey, 0, len(req.Balances)+len(req.Fundings))
	wanted = append(wanted, req.Balances...)
	wanted = append(wanted, req.Fundings...)

	simulationMeter.Mark(1)
	sim, err := r.backend.SimulateTransaction(ctx, tx, wanted)
	if err != nil {
		return nil, fmt.Errorf("resolve: simulate: %w", err)
	}
	if sim.Failed() {
		failureMeter.Mark(1)
		serr := newSimulationError(sim)
		log.Debug("Simulation failed", "err", serr, "logs", len(sim.Logs))
		return nil, serr
	}
	if len(sim.Accounts) != len(wanted) {
		return nil, fmt.Errorf("resolve: simulation returned %d accounts, requested %d", len(sim.Accounts), len(wanted))
	}
	res := &Resolution{
		Blockhash:     blockhash,
		Slot:          sim.Slot,
		Logs:          sim.Logs,
		UnitsConsumed: sim.UnitsConsumed,
		handles:       make(map[solana.PublicKey]handle.Handle),
		totals:        make(map[solana.PublicKey]handle.Handle),
		absent:        make(map[solana.PublicKey]bool),
	}
	for i, pk := range wanted {
		data := sim.Accounts[i]
		isBalance := i < len(req.Balances)
		var (
			h  handle.Handle
			ok bool
		)
		if isBalance {
			h, ok, err = layout.BalanceHandle(data)
		} else {
			h, ok, err = layout.FundingTotalHandle(data)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve: account %s: %w", pk, err)
		}
		switch {
		case !ok:
			res.absent[pk] = true
		case isBalance:
			res.handles[pk] = h
		default:
			res.totals[pk] = h
		}
	}
	log.Debug("Resolved handles", "slot", res.Slot, "units", res.UnitsConsumed, "balances", len(res.handles), "totals", len(res.totals), "elapsed", time.Since(start))
	return res, nil
}

// Resolution holds the outcome of a successful simulation.
type Resolution struct {
	Blockhash     solana.Hash
	Slot          uint64
	Logs          []string
	UnitsConsumed uint64

	handles map[solana.PublicKey]handle.Handle
	totals  map[solana.PublicKey]handle.Handle
	absent  map[solana.PublicKey]bool
}

// Handle returns the post-execution amount handle of a balance account.
func (r *Resolution) Handle(account solana.PublicKey) (handle.Handle, error) {
	if h, ok := r.handles[account]; ok {
		return h, nil
	}
	if r.absent[account] {
		return handle.Handle{}, fmt.Errorf("%w: %s", ErrAccountAbsent, account)
	}
	return handle.Handle{}, fmt.Errorf("%w: %s", ErrNotRequested, account)
}

// Total returns the post-execution running total of a campaign account.
func (r *Resolution) Total(funding solana.PublicKey) (handle.Handle, error) {
	if h, ok := r.totals[funding]; ok {
		return h, nil
	}
	if r.absent[funding] {
		return handle.Handle{}, fmt.Errorf("%w: %s", ErrAccountAbsent, funding)
	}
	return handle.Handle{}, fmt.Errorf("%w: %s", ErrNotRequested, funding)
}

// Balances returns a copy of the resolved balance handles.
func (r *Resolution) Balances() map[solana.PublicKey]handle.Handle {
	out := make(map[solana.PublicKey]handle.Handle, len(r.handles))
	for k, v := range r.handles {
		out[k] = v
	}
	return out
}

// Totals returns a copy of the resolved campaign totals.
func (r *Resolution) Totals() map[solana.PublicKey]handle.Handle {
	out := make(map[solana.PublicKey]handle.Handle, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}

// LogHandle scans the simulation logs for a handle reported under label.
func (r *Resolution) LogHandle(label string) (handle.Handle, bool) {
	return ScanLogs(r.Logs, label)
}

// ScanLogs finds the first log line containing label and parses the first
// run of decimal digits after it as a handle.
func ScanLogs(logs []string, label string) (handle.Handle, bool) {
	for _, line := range logs {
		idx := strings.Index(line, label)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(label):]
		start := strings.IndexAny(rest, "0123456789")
		if start < 0 {
			continue
		}
		end := start
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		h, err := handle.FromDecimal(rest[start:end])
		if err != nil {
			continue
		}
		return h, true
	}
	return handle.Handle{}, false
}
