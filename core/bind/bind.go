// Package bind turns resolved handles into the ordered allowance accounts a
// program expects after its declared accounts.
//
// The binding contract is positional: programs pair remaining accounts as
// [allowance, party] in a fixed per-instruction order and do not check the
// order client-side. A mis-ordered or missing pair surfaces only as a
// submission failure or as an allowance granted for the wrong value.
package bind

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/handle"
)

// Grant asks for Party to be allowed to decrypt the value behind Handle.
type Grant struct {
	Handle handle.Handle
	Party  solana.PublicKey
}

func (g Grant) String() string {
	return fmt.Sprintf("%s->%s", g.Handle, g.Party)
}

// Binding is a grant together with its derived allowance address.
type Binding struct {
	Grant
	Allowance solana.PublicKey
}

// Bindings is an ordered list of bindings.
type Bindings []Binding

// Metas returns the remaining-accounts list: for every binding, the
// allowance record (writable) followed by the party (read-only).
func (b Bindings) Metas() solana.AccountMetaSlice {
	metas := make(solana.AccountMetaSlice, 0, 2*len(b))
	for _, bd := range b {
		metas = append(metas,
			solana.NewAccountMeta(bd.Allowance, true, false),
			solana.NewAccountMeta(bd.Party, false, false),
		)
	}
	return metas
}

// Handles lists the bound handles in order.
func (b Bindings) Handles() []handle.Handle {
	out := make([]handle.Handle, len(b))
	for i, bd := range b {
		out[i] = bd.Handle
	}
	return out
}

// Binder derives allowance addresses for grants.
type Binder struct {
	deriver *derive.Deriver
}

func NewBinder(d *derive.Deriver) *Binder {
	return &Binder{deriver: d}
}

// Bind derives the allowance address of every grant, preserving order.
func (b *Binder) Bind(grants ...Grant) (Bindings, error) {
	out := make(Bindings, 0, len(grants))
	for i, g := range grants {
		if g.Party.IsZero() {
			return nil, fmt.Errorf("bind: grant %d has no party", i)
		}
		addr, err := b.deriver.Allowance(g.Handle, g.Party)
		if err != nil {
			return nil, fmt.Errorf("bind: grant %d (%v): %w", i, g, err)
		}
		out = append(out, Binding{Grant: g, Allowance: addr.Key})
	}
	return out, nil
}

// ForMint binds the new balance of the minted-to account to the mint
// authority.
func (b *Binder) ForMint(newBalance handle.Handle, authority solana.PublicKey) (Bindings, error) {
	return b.Bind(Grant{newBalance, authority})
}

// ForTransfer binds the new source balance and the new destination balance.
func (b *Binder) ForTransfer(source, destination Grant) (Bindings, error) {
	return b.Bind(source, destination)
}

// ForDeposit binds the depositor's new balance and the vault's new balance.
// The campaign total is not bound: the funding program grants no access to
// it on deposit.
func (b *Binder) ForDeposit(source, vault Grant) (Bindings, error) {
	return b.Bind(source, vault)
}

// ForWithdraw binds the vault's new balance and the campaign's new running
// total, both to the creator.
func (b *Binder) ForWithdraw(vault, total handle.Handle, creator solana.PublicKey) (Bindings, error) {
	return b.Bind(Grant{vault, creator}, Grant{total, creator})
}
