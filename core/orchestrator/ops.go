package orchestrator

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/bind"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/core/resolve"
	"github.com/tos-network/incofund/params"
)

// plan describes how an operation is built and bound.
type plan struct {
	// build creates the instruction with the given remaining accounts.
	build    func(remaining solana.AccountMetaSlice) (solana.Instruction, error)
	balances []solana.PublicKey
	fundings []solana.PublicKey
	// bind derives the allowance bindings from the resolved handles.
	bind func(res *resolve.Resolution) (bind.Bindings, error)
}

// prepare resolves and binds op according to p and leaves it signed and
// ready for submission.
func (o *Orchestrator) prepare(ctx context.Context, op *Operation, p plan) error {
	if !op.Kind().resolves() {
		return op.fail(fmt.Errorf("%w: %s carries no handles", ErrInvalidTransition, op.Kind()))
	}
	if err := op.transition(StateResolving); err != nil {
		return err
	}
	for _, account := range p.balances {
		s, err := o.readHandle(ctx, account, false)
		if err != nil {
			return op.fail(err)
		}
		op.base[account] = s
	}
	for _, account := range p.fundings {
		s, err := o.readHandle(ctx, account, true)
		if err != nil {
			return op.fail(err)
		}
		op.base[account] = s
	}
	unbound, err := p.build(nil)
	if err != nil {
		return op.fail(err)
	}
	res, err := o.resolver.Resolve(ctx, resolve.Request{
		Instructions: []solana.Instruction{unbound},
		FeePayer:     o.FeePayer(),
		Signers:      o.signers(op.Intent.Signer),
		Balances:     p.balances,
		Fundings:     p.fundings,
	})
	if err != nil {
		return op.fail(err)
	}
	op.Resolution = res
	for account, h := range res.Balances() {
		op.expected[account] = snapshot{handle: h, present: true}
	}
	for account, h := range res.Totals() {
		op.expected[account] = snapshot{handle: h, total: true, present: true}
	}

	if err := op.transition(StateBinding); err != nil {
		return err
	}
	bindings, err := p.bind(res)
	if err != nil {
		return op.fail(err)
	}
	ix, err := p.build(bindings.Metas())
	if err != nil {
		return op.fail(err)
	}
	tx, err := o.buildTransaction(ctx, ix, op.Intent.Signer)
	if err != nil {
		return op.fail(err)
	}
	op.mu.Lock()
	op.Bindings = bindings
	op.tx = tx
	op.mu.Unlock()
	preparedMeter.Mark(1)
	return nil
}

func (o *Orchestrator) encrypt(ctx context.Context, op *Operation) error {
	ct, err := o.enc.Encrypt(ctx, op.Intent.Amount)
	if err != nil {
		return op.fail(fmt.Errorf("orchestrator: encrypt: %w", err))
	}
	op.Intent.Ciphertext = ct
	return nil
}

// MintRequest mints an encrypted amount into a balance account.
type MintRequest struct {
	Authority *accounts.Party
	Mint      solana.PublicKey
	Account   solana.PublicKey
	Amount    uint64

	// Reader is allowed to decrypt the new balance; defaults to the
	// authority.
	Reader solana.PublicKey
}

// PrepareMint resolves and binds a mint without submitting it.
func (o *Orchestrator) PrepareMint(ctx context.Context, req MintRequest) (*Operation, error) {
	op := newOperation(Intent{
		Kind:     KindMint,
		Amount:   req.Amount,
		Signer:   req.Authority,
		Accounts: []solana.PublicKey{req.Account},
	})
	return op, o.prepareMint(ctx, op, req)
}

func (o *Orchestrator) prepareMint(ctx context.Context, op *Operation, req MintRequest) error {
	if err := o.encrypt(ctx, op); err != nil {
		return err
	}
	reader := req.Reader
	if reader.IsZero() {
		reader = req.Authority.PublicKey()
	}
	args := program.CiphertextArgs{Ciphertext: op.Intent.Ciphertext, InputType: params.InputType}
	return o.prepare(ctx, op, plan{
		build: func(remaining solana.AccountMetaSlice) (solana.Instruction, error) {
			return o.token.MintTo(req.Mint, req.Account, req.Authority.PublicKey(), args, remaining)
		},
		balances: []solana.PublicKey{req.Account},
		bind: func(res *resolve.Resolution) (bind.Bindings, error) {
			h, err := res.Handle(req.Account)
			if err != nil {
				return nil, err
			}
			return o.binder.ForMint(h, reader)
		},
	})
}

// Mint encrypts, resolves, binds and submits a mint.
func (o *Orchestrator) Mint(ctx context.Context, req MintRequest) (*Operation, error) {
	op := newOperation(Intent{
		Kind:     KindMint,
		Amount:   req.Amount,
		Signer:   req.Authority,
		Accounts: []solana.PublicKey{req.Account},
	})
	return o.run(ctx, op, func() error { return o.prepareMint(ctx, op, req) })
}

// TransferRequest moves an encrypted amount between balance accounts.
type TransferRequest struct {
	Owner       *accounts.Party
	Source      solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64

	// Readers of the new balances; default to the account owners.
	SourceReader      solana.PublicKey
	DestinationReader solana.PublicKey
}

func transferIntent(req TransferRequest) Intent {
	return Intent{
		Kind:     KindTransfer,
		Amount:   req.Amount,
		Signer:   req.Owner,
		Accounts: []solana.PublicKey{req.Source, req.Destination},
	}
}

func (o *Orchestrator) PrepareTransfer(ctx context.Context, req TransferRequest) (*Operation, error) {
	op := newOperation(transferIntent(req))
	return op, o.prepareTransfer(ctx, op, req)
}

func (o *Orchestrator) Transfer(ctx context.Context, req TransferRequest) (*Operation, error) {
	op := newOperation(transferIntent(req))
	return o.run(ctx, op, func() error { return o.prepareTransfer(ctx, op, req) })
}

func (o *Orchestrator) prepareTransfer(ctx context.Context, op *Operation, req TransferRequest) error {
	srcReader, dstReader := req.SourceReader, req.DestinationReader
	if srcReader.IsZero() || dstReader.IsZero() {
		src, err := o.readBalance(ctx, req.Source)
		if err != nil {
			return op.fail(err)
		}
		dst, err := o.readBalance(ctx, req.Destination)
		if err != nil {
			return op.fail(err)
		}
		if srcReader.IsZero() {
			srcReader = src.Owner
		}
		if dstReader.IsZero() {
			dstReader = dst.Owner
		}
	}
	if err := o.encrypt(ctx, op); err != nil {
		return err
	}
	args := program.CiphertextArgs{Ciphertext: op.Intent.Ciphertext, InputType: params.InputType}
	return o.prepare(ctx, op, plan{
		build: func(remaining solana.AccountMetaSlice) (solana.Instruction, error) {
			return o.token.Transfer(req.Source, req.Destination, req.Owner.PublicKey(), args, remaining)
		},
		balances: []solana.PublicKey{req.Source, req.Destination},
		bind: func(res *resolve.Resolution) (bind.Bindings, error) {
			src, err := res.Handle(req.Source)
			if err != nil {
				return nil, err
			}
			dst, err := res.Handle(req.Destination)
			if err != nil {
				return nil, err
			}
			return o.binder.ForTransfer(bind.Grant{Handle: src, Party: srcReader}, bind.Grant{Handle: dst, Party: dstReader})
		},
	})
}

// DepositRequest moves an encrypted amount from a balance account into the
// vault of a campaign.
type DepositRequest struct {
	Depositor *accounts.Party
	Source    solana.PublicKey
	Creator   solana.PublicKey // campaign creator
	Amount    uint64

	// Readers of the new source and vault balances; default to the
	// depositor and the campaign creator.
	SourceReader solana.PublicKey
	VaultReader  solana.PublicKey
}

func (o *Orchestrator) depositIntent(req DepositRequest) (Intent, error) {
	funding, err := o.deriver.Funding(req.Creator)
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Kind:     KindDeposit,
		Amount:   req.Amount,
		Signer:   req.Depositor,
		Accounts: []solana.PublicKey{req.Source, funding.Key},
	}, nil
}

func (o *Orchestrator) PrepareDeposit(ctx context.Context, req DepositRequest) (*Operation, error) {
	intent, err := o.depositIntent(req)
	if err != nil {
		return nil, err
	}
	op := newOperation(intent)
	return op, o.prepareDeposit(ctx, op, req)
}

// Deposit checks the campaign is open, then encrypts, resolves, binds and
// submits the deposit.
func (o *Orchestrator) Deposit(ctx context.Context, req DepositRequest) (*Operation, error) {
	intent, err := o.depositIntent(req)
	if err != nil {
		return nil, err
	}
	op := newOperation(intent)
	return o.run(ctx, op, func() error { return o.prepareDeposit(ctx, op, req) })
}

func (o *Orchestrator) prepareDeposit(ctx context.Context, op *Operation, req DepositRequest) error {
	funding := op.Intent.Accounts[1]
	campaign, err := o.readCampaign(ctx, funding)
	if err != nil {
		return op.fail(err)
	}
	if campaign.IsFinalized {
		return op.fail(fmt.Errorf("%w: %s", ErrCampaignFinalized, funding))
	}
	vault := campaign.Vault
	op.Intent.Accounts = append(op.Intent.Accounts, vault)

	srcReader, vaultReader := req.SourceReader, req.VaultReader
	if srcReader.IsZero() {
		srcReader = req.Depositor.PublicKey()
	}
	if vaultReader.IsZero() {
		vaultReader = campaign.Creator
	}
	if err := o.encrypt(ctx, op); err != nil {
		return err
	}
	ct := op.Intent.Ciphertext
	return o.prepare(ctx, op, plan{
		build: func(remaining solana.AccountMetaSlice) (solana.Instruction, error) {
			return o.funding.Deposit(req.Depositor.PublicKey(), req.Source, vault, campaign.Mint, funding, ct, remaining)
		},
		balances: []solana.PublicKey{req.Source, vault},
		fundings: []solana.PublicKey{funding},
		bind: func(res *resolve.Resolution) (bind.Bindings, error) {
			src, err := res.Handle(req.Source)
			if err != nil {
				return nil, err
			}
			dst, err := res.Handle(vault)
			if err != nil {
				return nil, err
			}
			return o.binder.ForDeposit(bind.Grant{Handle: src, Party: srcReader}, bind.Grant{Handle: dst, Party: vaultReader})
		},
	})
}

// WithdrawRequest moves an encrypted amount out of the creator's campaign
// vault.
type WithdrawRequest struct {
	Creator     *accounts.Party
	Destination solana.PublicKey
	Amount      uint64

	// Funding is the campaign account; defaults to the creator's campaign.
	Funding solana.PublicKey
}

func (o *Orchestrator) withdrawIntent(req WithdrawRequest) (Intent, error) {
	funding := req.Funding
	if funding.IsZero() {
		addr, err := o.deriver.Funding(req.Creator.PublicKey())
		if err != nil {
			return Intent{}, err
		}
		funding = addr.Key
	}
	return Intent{
		Kind:     KindWithdraw,
		Amount:   req.Amount,
		Signer:   req.Creator,
		Accounts: []solana.PublicKey{req.Destination, funding},
	}, nil
}

func (o *Orchestrator) PrepareWithdraw(ctx context.Context, req WithdrawRequest) (*Operation, error) {
	intent, err := o.withdrawIntent(req)
	if err != nil {
		return nil, err
	}
	op := newOperation(intent)
	return op, o.prepareWithdraw(ctx, op, req)
}

// Withdraw checks the signer created the campaign, then encrypts, resolves,
// binds and submits the withdrawal. Both the new vault balance and the new
// campaign total are bound to the creator.
func (o *Orchestrator) Withdraw(ctx context.Context, req WithdrawRequest) (*Operation, error) {
	intent, err := o.withdrawIntent(req)
	if err != nil {
		return nil, err
	}
	op := newOperation(intent)
	return o.run(ctx, op, func() error { return o.prepareWithdraw(ctx, op, req) })
}

func (o *Orchestrator) prepareWithdraw(ctx context.Context, op *Operation, req WithdrawRequest) error {
	funding := op.Intent.Accounts[1]
	campaign, err := o.readCampaign(ctx, funding)
	if err != nil {
		return op.fail(err)
	}
	creator := req.Creator.PublicKey()
	if campaign.Creator != creator {
		return op.fail(fmt.Errorf("%w: campaign %s belongs to %s", ErrNotCreator, funding, campaign.Creator))
	}
	vault := campaign.Vault
	op.Intent.Accounts = append(op.Intent.Accounts, vault)

	if err := o.encrypt(ctx, op); err != nil {
		return err
	}
	ct := op.Intent.Ciphertext
	return o.prepare(ctx, op, plan{
		build: func(remaining solana.AccountMetaSlice) (solana.Instruction, error) {
			return o.funding.Withdraw(creator, req.Destination, vault, funding, ct, remaining)
		},
		balances: []solana.PublicKey{vault, req.Destination},
		fundings: []solana.PublicKey{funding},
		bind: func(res *resolve.Resolution) (bind.Bindings, error) {
			vaultHandle, err := res.Handle(vault)
			if err != nil {
				return nil, err
			}
			total, err := withdrawTotal(res, funding)
			if err != nil {
				return nil, err
			}
			return o.binder.ForWithdraw(vaultHandle, total, creator)
		},
	})
}

// withdrawTotal reads the new campaign total from the withdraw logs and
// cross-checks it against the campaign snapshot.
func withdrawTotal(res *resolve.Resolution, funding solana.PublicKey) (handle.Handle, error) {
	snap, snapErr := res.Total(funding)
	logged, ok := res.LogHandle(params.TotalLogLabel)
	switch {
	case ok && snapErr == nil && logged != snap:
		return handle.Handle{}, fmt.Errorf("%w: logged %s, snapshot %s", ErrTotalMismatch, logged, snap)
	case ok:
		return logged, nil
	default:
		return snap, snapErr
	}
}
