// Package orchestrator drives confidential token and funding operations
// through their two-phase lifecycle: the operation is simulated to learn the
// handles it will produce, allowance accounts are derived from those
// handles, and the real transaction is submitted carrying them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/bind"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/core/resolve"
	"github.com/tos-network/incofund/params"
)

// Config is the orchestrator configuration.
type Config struct {
	Network  *params.Network
	FeePayer *accounts.Party

	// Confirm makes submissions wait for ledger confirmation before the
	// operation is reported committed.
	Confirm bool
}

// Orchestrator builds, resolves, binds and submits operations. It is safe
// for concurrent use; operations touching the same account are serialized.
type Orchestrator struct {
	backend  incofund.Backend
	enc      incofund.Encryptor
	cfg      Config
	token    program.TokenProgram
	funding  program.FundingProgram
	deriver  *derive.Deriver
	binder   *bind.Binder
	resolver *resolve.Resolver
	locks    *AccountLocks

	buildMu sync.Mutex // blockhash binding and signing with the shared fee payer
}

// New creates an orchestrator submitting through backend and encrypting
// amounts with enc.
func New(backend incofund.Backend, enc incofund.Encryptor, cfg Config) (*Orchestrator, error) {
	if cfg.Network == nil {
		return nil, errors.New("orchestrator: missing network")
	}
	if err := cfg.Network.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if cfg.FeePayer == nil {
		return nil, errors.New("orchestrator: missing fee payer")
	}
	n := cfg.Network
	deriver := derive.NewDeriver(n.LightningProgram, n.FundingProgram)
	return &Orchestrator{
		backend:  backend,
		enc:      enc,
		cfg:      cfg,
		token:    program.TokenProgram{ID: n.TokenProgram, Lightning: n.LightningProgram},
		funding:  program.FundingProgram{ID: n.FundingProgram, Token: n.TokenProgram, Lightning: n.LightningProgram},
		deriver:  deriver,
		binder:   bind.NewBinder(deriver),
		resolver: resolve.New(backend),
		locks:    NewAccountLocks(),
	}, nil
}

// Deriver returns the address deriver bound to the configured programs.
func (o *Orchestrator) Deriver() *derive.Deriver {
	return o.deriver
}

func (o *Orchestrator) FeePayer() solana.PublicKey {
	return o.cfg.FeePayer.PublicKey()
}

func (o *Orchestrator) signers(parties ...*accounts.Party) *accounts.Keyring {
	keys := accounts.NewKeyring(o.cfg.FeePayer)
	for _, p := range parties {
		if p != nil {
			keys.Add(p)
		}
	}
	return keys
}

// buildTransaction binds ix to the latest blockhash and signs it.
func (o *Orchestrator) buildTransaction(ctx context.Context, ix solana.Instruction, parties ...*accounts.Party) (*solana.Transaction, error) {
	o.buildMu.Lock()
	defer o.buildMu.Unlock()

	blockhash, err := o.backend.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(o.FeePayer()))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build transaction: %w", err)
	}
	if err := o.signers(parties...).SignTransaction(tx, false); err != nil {
		return nil, fmt.Errorf("orchestrator: sign: %w", err)
	}
	return tx, nil
}

// readHandle returns the handle currently stored in account.
func (o *Orchestrator) readHandle(ctx context.Context, account solana.PublicKey, total bool) (snapshot, error) {
	data, err := o.backend.AccountData(ctx, account)
	if err != nil {
		return snapshot{}, fmt.Errorf("orchestrator: read %s: %w", account, err)
	}
	var (
		h  = snapshot{total: total}
		ok bool
	)
	if total {
		h.handle, ok, err = layout.FundingTotalHandle(data)
	} else {
		h.handle, ok, err = layout.BalanceHandle(data)
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("orchestrator: decode %s: %w", account, err)
	}
	h.present = ok
	return h, nil
}

func (o *Orchestrator) readBalance(ctx context.Context, account solana.PublicKey) (*layout.BalanceAccount, error) {
	data, err := o.backend.AccountData(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read %s: %w", account, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return layout.DecodeBalanceAccount(data)
}

func (o *Orchestrator) readCampaign(ctx context.Context, funding solana.PublicKey) (*layout.Funding, error) {
	data, err := o.backend.AccountData(ctx, funding)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read %s: %w", funding, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, funding)
	}
	return layout.DecodeFunding(data)
}

// Submit sends a prepared operation and, if configured, waits for its
// confirmation. It does not retry.
func (o *Orchestrator) Submit(ctx context.Context, op *Operation) error {
	tx := op.Transaction()
	if tx == nil {
		return ErrNotPrepared
	}
	if err := op.transition(StateSubmitting); err != nil {
		return err
	}
	sig, err := o.backend.SendTransaction(ctx, tx)
	if err != nil {
		return op.fail(newSubmissionError(err))
	}
	op.Signature = sig
	if o.cfg.Confirm {
		if err := o.backend.WaitForConfirmation(ctx, sig); err != nil {
			return op.fail(newSubmissionError(err))
		}
	}
	if err := op.transition(StateCommitted); err != nil {
		return err
	}
	committedMeter.Mark(1)
	log.Info("Operation committed", "id", op.ID, "kind", op.Kind(), "sig", sig)
	return nil
}

// run executes prepare followed by Submit while holding the locks of every
// account the operation mutates.
func (o *Orchestrator) run(ctx context.Context, op *Operation, prepare func() error) (*Operation, error) {
	start := time.Now()
	defer operationTimer.UpdateSince(start)

	unlock := o.locks.Lock(op.Intent.Accounts...)
	defer unlock()

	if err := prepare(); err != nil {
		return op, err
	}
	if err := o.Submit(ctx, op); err != nil {
		return op, err
	}
	return op, nil
}

// Verify checks the ledger against an operation. For a prepared operation
// the mutated accounts must still hold the handles observed at preparation;
// for a committed one they must hold the resolved handles. Divergence is
// reported as a *SkewError.
func (o *Orchestrator) Verify(ctx context.Context, op *Operation) error {
	var (
		want      map[solana.PublicKey]snapshot
		committed bool
	)
	op.mu.Lock()
	switch op.state {
	case StateBinding:
		want = op.base
	case StateCommitted:
		want, committed = op.expected, true
	default:
		op.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPrepared, op.state)
	}
	op.mu.Unlock()

	skew := &SkewError{Committed: committed}
	for _, account := range op.Intent.Accounts {
		w, ok := want[account]
		if !ok {
			continue
		}
		have, err := o.readHandle(ctx, account, w.total)
		if err != nil {
			return err
		}
		if have.present != w.present || have.handle != w.handle {
			skew.Mismatches = append(skew.Mismatches, Mismatch{
				Account: account,
				Want:    w.handle,
				Have:    have.handle,
				Absent:  !have.present,
			})
		}
	}
	if len(skew.Mismatches) > 0 {
		skewMeter.Mark(1)
		log.Warn("Ledger diverged from resolution", "id", op.ID, "kind", op.Kind(), "committed", committed, "accounts", len(skew.Mismatches))
		return skew
	}
	return nil
}
