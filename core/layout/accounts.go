package layout

import (
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/handle"
)

// AccountState mirrors the token program's account state enum.
type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

func (s AccountState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// BalanceAccount is a confidential token account. Amount sits at bytes
// [72,88) of the raw data.
type BalanceAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          handle.Handle
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount handle.Handle
	CloseAuthority  *solana.PublicKey
}

// DecodeBalanceAccount decodes a balance account. Deployments that store
// only the fixed prefix (mint, owner, amount) decode with defaults for the
// remaining fields; a tail cut mid-field is a decode failure.
func DecodeBalanceAccount(data []byte) (*BalanceAccount, error) {
	r := newReader(data, BalanceDiscriminator)
	acc := &BalanceAccount{
		Mint:   r.pubkey(),
		Owner:  r.pubkey(),
		Amount: r.handle(),
		State:  StateInitialized,
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.dec.Remaining() == 0 {
		return acc, nil
	}
	acc.Delegate = r.optionPubkey()
	acc.State = AccountState(r.u8())
	acc.IsNative = r.optionU64()
	acc.DelegatedAmount = r.handle()
	acc.CloseAuthority = r.optionPubkey()
	if r.err != nil {
		return nil, r.err
	}
	return acc, nil
}

func EncodeBalanceAccount(acc *BalanceAccount) []byte {
	w := newWriter(BalanceDiscriminator)
	w.pubkey(acc.Mint)
	w.pubkey(acc.Owner)
	w.handle(acc.Amount)
	w.optionPubkey(acc.Delegate)
	w.u8(uint8(acc.State))
	w.optionU64(acc.IsNative)
	w.handle(acc.DelegatedAmount)
	w.optionPubkey(acc.CloseAuthority)
	return w.bytes()
}

// Mint is a confidential token mint.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          handle.Handle
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

func DecodeMint(data []byte) (*Mint, error) {
	r := newReader(data, MintDiscriminator)
	m := &Mint{
		MintAuthority:   r.optionPubkey(),
		Supply:          r.handle(),
		Decimals:        r.u8(),
		IsInitialized:   r.boolean(),
		FreezeAuthority: r.optionPubkey(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

func EncodeMint(m *Mint) []byte {
	w := newWriter(MintDiscriminator)
	w.optionPubkey(m.MintAuthority)
	w.handle(m.Supply)
	w.u8(m.Decimals)
	w.boolean(m.IsInitialized)
	w.optionPubkey(m.FreezeAuthority)
	return w.bytes()
}

// Funding is a funding campaign account.
type Funding struct {
	Creator          solana.PublicKey
	Vault            solana.PublicKey
	Mint             solana.PublicKey
	Total            handle.Handle // encrypted running total, bytes [104,120)
	ContributorCount uint64
	CreatedAt        int64 // unix seconds
	IsFinalized      bool
}

func DecodeFunding(data []byte) (*Funding, error) {
	r := newReader(data, FundingDiscriminator)
	f := &Funding{
		Creator:          r.pubkey(),
		Vault:            r.pubkey(),
		Mint:             r.pubkey(),
		Total:            r.handle(),
		ContributorCount: r.u64(),
		CreatedAt:        r.i64(),
		IsFinalized:      r.boolean(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

func EncodeFunding(f *Funding) []byte {
	w := newWriter(FundingDiscriminator)
	w.pubkey(f.Creator)
	w.pubkey(f.Vault)
	w.pubkey(f.Mint)
	w.handle(f.Total)
	w.u64(f.ContributorCount)
	w.i64(f.CreatedAt)
	w.boolean(f.IsFinalized)
	return w.bytes()
}
