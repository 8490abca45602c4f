package orchestrator

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/params"
)

// Initialization instructions create accounts holding the zero handle and
// need no allowance bindings, so they skip resolution and binding.

// submitDirect signs ix and submits it without resolving handles.
func (o *Orchestrator) submitDirect(ctx context.Context, op *Operation, ix solana.Instruction) (*Operation, error) {
	unlock := o.locks.Lock(op.Intent.Accounts...)
	defer unlock()

	tx, err := o.buildTransaction(ctx, ix, op.Intent.Signer)
	if err != nil {
		return op, op.fail(err)
	}
	op.mu.Lock()
	op.tx = tx
	op.mu.Unlock()
	if err := o.Submit(ctx, op); err != nil {
		return op, err
	}
	return op, nil
}

// InitializeMint creates a confidential mint. The mint party
// signs for its own address; authority may mint and freeze is optional.
func (o *Orchestrator) InitializeMint(ctx context.Context, mint *accounts.Party, authority solana.PublicKey, freeze *solana.PublicKey) (*Operation, error) {
	op := newOperation(Intent{
		Kind:     KindInitializeMint,
		Signer:   mint,
		Accounts: []solana.PublicKey{mint.PublicKey()},
	})
	ix := o.token.InitializeMint(mint.PublicKey(), o.FeePayer(), program.InitializeMintArgs{
		Decimals:        params.Decimals,
		MintAuthority:   authority,
		FreezeAuthority: freeze,
	})
	return o.submitDirect(ctx, op, ix)
}

// InitializeAccount creates the balance account of owner for mint.
func (o *Orchestrator) InitializeAccount(ctx context.Context, account *accounts.Party, mint, owner solana.PublicKey) (*Operation, error) {
	op := newOperation(Intent{
		Kind:     KindInitializeAccount,
		Signer:   account,
		Accounts: []solana.PublicKey{account.PublicKey()},
	})
	ix := o.token.InitializeAccount(account.PublicKey(), mint, owner, o.FeePayer())
	return o.submitDirect(ctx, op, ix)
}

// InitializeCampaign opens the campaign of creator for mint and returns the
// operation together with the campaign and vault addresses.
func (o *Orchestrator) InitializeCampaign(ctx context.Context, creator *accounts.Party, mint solana.PublicKey) (op *Operation, funding, vault solana.PublicKey, err error) {
	f, v, err := o.deriver.Campaign(creator.PublicKey(), mint)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}
	op = newOperation(Intent{
		Kind:     KindInitializeCampaign,
		Signer:   creator,
		Accounts: []solana.PublicKey{f.Key, v.Key},
	})
	ix := o.funding.Initialize(creator.PublicKey(), f.Key, v.Key, mint)
	op, err = o.submitDirect(ctx, op, ix)
	return op, f.Key, v.Key, err
}
