package simledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/bind"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/core/resolve"
	"github.com/tos-network/incofund/params"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	ledger  *Ledger
	token   program.TokenProgram
	funding program.FundingProgram
	binder  *bind.Binder
	keys    *accounts.Keyring
	admin   *accounts.Party
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	l := New(cfg)
	admin, err := accounts.GenerateParty("admin")
	if err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		ledger:  l,
		token:   program.TokenProgram{ID: cfg.TokenProgram, Lightning: cfg.Lightning},
		funding: program.FundingProgram{ID: cfg.FundingProgram, Token: cfg.TokenProgram, Lightning: cfg.Lightning},
		binder:  bind.NewBinder(derive.NewDeriver(cfg.Lightning, cfg.FundingProgram)),
		keys:    accounts.NewKeyring(admin),
		admin:   admin,
	}
}

func (f *fixture) party(name string) *accounts.Party {
	f.t.Helper()
	p, err := accounts.GenerateParty(name)
	if err != nil {
		f.t.Fatalf("failed to create %s: %v", name, err)
	}
	f.keys.Add(p)
	return p
}

func (f *fixture) tx(payer solana.PublicKey, ixs ...solana.Instruction) *solana.Transaction {
	f.t.Helper()
	bh, err := f.ledger.LatestBlockhash(f.ctx)
	if err != nil {
		f.t.Fatalf("blockhash: %v", err)
	}
	tx, err := solana.NewTransaction(ixs, bh, solana.TransactionPayer(payer))
	if err != nil {
		f.t.Fatalf("build transaction: %v", err)
	}
	if err := f.keys.SignTransaction(tx, false); err != nil {
		f.t.Fatalf("sign transaction: %v", err)
	}
	return tx
}

func (f *fixture) send(ixs ...solana.Instruction) error {
	_, err := f.ledger.SendTransaction(f.ctx, f.tx(f.admin.PublicKey(), ixs...))
	return err
}

func (f *fixture) mustSend(ixs ...solana.Instruction) {
	f.t.Helper()
	if err := f.send(ixs...); err != nil {
		if le, ok := err.(*TxError); ok {
			f.t.Logf("logs: %q", le.Logs)
		}
		f.t.Fatalf("transaction failed: %v", err)
	}
}

func (f *fixture) balance(pk solana.PublicKey) handle.Handle {
	f.t.Helper()
	data, err := f.ledger.AccountData(f.ctx, pk)
	if err != nil {
		f.t.Fatalf("read %s: %v", pk, err)
	}
	h, ok, err := layout.BalanceHandle(data)
	if err != nil || !ok {
		f.t.Fatalf("balance %s: ok=%v err=%v", pk, ok, err)
	}
	return h
}

func (f *fixture) value(h handle.Handle) uint64 {
	f.t.Helper()
	v, ok := f.ledger.Plaintext(h)
	if !ok {
		f.t.Fatalf("handle %s unknown", h)
	}
	return v.Uint64()
}

// setupMint creates a mint owned by the admin and one balance account per
// owner.
func (f *fixture) setupMint(owners ...*accounts.Party) (solana.PublicKey, []solana.PublicKey) {
	f.t.Helper()
	mint := f.party("mint")
	f.mustSend(f.token.InitializeMint(mint.PublicKey(), f.admin.PublicKey(), program.InitializeMintArgs{
		Decimals:      params.Decimals,
		MintAuthority: f.admin.PublicKey(),
	}))
	var accs []solana.PublicKey
	for _, owner := range owners {
		acc := f.party("account")
		f.mustSend(f.token.InitializeAccount(acc.PublicKey(), mint.PublicKey(), owner.PublicKey(), f.admin.PublicKey()))
		accs = append(accs, acc.PublicKey())
	}
	return mint.PublicKey(), accs
}

func (f *fixture) mintTo(mint, account solana.PublicKey, amount uint64, remaining solana.AccountMetaSlice) error {
	ix, err := f.token.MintTo(mint, account, f.admin.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(amount)}, remaining)
	if err != nil {
		f.t.Fatalf("mint_to: %v", err)
	}
	return f.send(ix)
}

func requireCode(t *testing.T, err error, code uint32) {
	t.Helper()
	var txErr *TxError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected transaction error with code %d, got %v", code, err)
	}
	_, have, ok := program.ParseCustomError(txErr.Err)
	if !ok || have != code {
		t.Fatalf("error code mismatch: have %d (%v) want %d, logs %q", have, ok, code, txErr.Logs)
	}
}

func TestFreshAccountHoldsZeroHandle(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	_, accs := f.setupMint(f.admin)
	if h := f.balance(accs[0]); !h.IsZero() {
		t.Fatalf("fresh account handle %s, want zero", h)
	}
	absent, err := f.ledger.AccountData(f.ctx, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	_, ok, err := layout.BalanceHandle(absent)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMintTo(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)

	require.NoError(t, f.mintTo(mint, accs[0], 100*params.TokenMultiplier, nil))
	first := f.balance(accs[0])
	require.Equal(t, 100*params.TokenMultiplier, f.value(first))
	require.False(t, f.ledger.Allowed(first, f.admin.PublicKey()), "unbound mint granted access")

	// Binding the next handle grants the authority access to it.
	res, err := resolve.New(f.ledger).Resolve(f.ctx, resolve.Request{
		Instructions: []solana.Instruction{mustMintTo(t, f, mint, accs[0], 5, nil)},
		FeePayer:     f.admin.PublicKey(),
		Signers:      f.keys,
		Balances:     []solana.PublicKey{accs[0]},
	})
	require.NoError(t, err)
	next, err := res.Handle(accs[0])
	require.NoError(t, err)
	bindings, err := f.binder.ForMint(next, f.admin.PublicKey())
	require.NoError(t, err)
	require.NoError(t, f.mintTo(mint, accs[0], 5, bindings.Metas()))

	require.Equal(t, next, f.balance(accs[0]), "committed handle differs from simulated one")
	require.Equal(t, 100*params.TokenMultiplier+5, f.value(next))
	require.True(t, f.ledger.Allowed(next, f.admin.PublicKey()))
}

func mustMintTo(t *testing.T, f *fixture, mint, account solana.PublicKey, amount uint64, remaining solana.AccountMetaSlice) solana.Instruction {
	ix, err := f.token.MintTo(mint, account, f.admin.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(amount)}, remaining)
	if err != nil {
		t.Fatalf("mint_to: %v", err)
	}
	return ix
}

func TestMintRequiresAuthority(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)
	other := f.party("other")

	ix, err := f.token.MintTo(mint, accs[0], other.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(1)}, nil)
	require.NoError(t, err)
	requireCode(t, f.send(ix), program.CodeOwnerMismatch)
}

func TestInitializeTwice(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)
	// The account keypair is already in the keyring.
	requireCode(t, f.send(f.token.InitializeAccount(accs[0], mint, f.admin.PublicKey(), f.admin.PublicKey())), program.CodeAlreadyInUse)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	alice, bob := f.party("alice"), f.party("bob")
	mint, accs := f.setupMint(alice, bob)
	require.NoError(t, f.mintTo(mint, accs[0], 50, nil))

	ix, err := f.token.Transfer(accs[0], accs[1], alice.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(20)}, nil)
	require.NoError(t, err)
	f.mustSend(ix)
	require.Equal(t, uint64(30), f.value(f.balance(accs[0])))
	require.Equal(t, uint64(20), f.value(f.balance(accs[1])))

	// Overdrawing moves nothing but still rotates both handles.
	before := f.balance(accs[0])
	ix, err = f.token.Transfer(accs[0], accs[1], alice.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(31)}, nil)
	require.NoError(t, err)
	f.mustSend(ix)
	require.NotEqual(t, before, f.balance(accs[0]))
	require.Equal(t, uint64(30), f.value(f.balance(accs[0])))
	require.Equal(t, uint64(20), f.value(f.balance(accs[1])))

	// Only the owner may move funds.
	ix, err = f.token.Transfer(accs[0], accs[1], bob.PublicKey(), program.CiphertextArgs{Ciphertext: Encrypt(1)}, nil)
	require.NoError(t, err)
	requireCode(t, f.send(ix), program.CodeOwnerMismatch)
}

func TestWrongAllowanceRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)

	// Bind a handle the mint will not produce.
	stale, err := f.binder.ForMint(handle.FromUint64(7), f.admin.PublicKey())
	require.NoError(t, err)
	slot := f.ledger.Slot()
	requireCode(t, f.mintTo(mint, accs[0], 5, stale.Metas()), program.CodeConstraintSeeds)

	require.Equal(t, slot, f.ledger.Slot(), "failed transaction advanced the ledger")
	require.True(t, f.balance(accs[0]).IsZero(), "failed transaction changed state")
}

func TestSimulationIsSideEffectFree(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)
	tx := f.tx(f.admin.PublicKey(), mustMintTo(t, f, mint, accs[0], 9, nil))

	for i := 0; i < 2; i++ {
		sim, err := f.ledger.SimulateTransaction(f.ctx, tx, []solana.PublicKey{accs[0], solana.NewWallet().PublicKey()})
		require.NoError(t, err)
		require.False(t, sim.Failed(), "simulation failed: %s", sim.Err)
		require.Len(t, sim.Accounts, 2)
		require.Nil(t, sim.Accounts[1])
		h, ok, err := layout.BalanceHandle(sim.Accounts[0])
		require.NoError(t, err)
		require.True(t, ok)
		require.False(t, h.IsZero())
	}
	require.True(t, f.balance(accs[0]).IsZero())
}

func TestSendRejectsBadTransactions(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	mint, accs := f.setupMint(f.admin)
	tx := f.tx(f.admin.PublicKey(), mustMintTo(t, f, mint, accs[0], 1, nil))

	tampered := *tx
	tampered.Signatures = []solana.Signature{{}}
	_, err := f.ledger.SendTransaction(f.ctx, &tampered)
	require.ErrorIs(t, err, ErrSignature)

	_, err = f.ledger.SendTransaction(f.ctx, tx)
	require.NoError(t, err)
	_, err = f.ledger.SendTransaction(f.ctx, tx)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	require.NoError(t, f.ledger.WaitForConfirmation(f.ctx, tx.Signatures[0]))
}

// openCampaign initializes the creator's campaign and returns the funding
// and vault addresses.
func (f *fixture) openCampaign(creator *accounts.Party, mint solana.PublicKey) (solana.PublicKey, solana.PublicKey) {
	f.t.Helper()
	fund, vault, err := derive.NewDeriver(f.ledger.cfg.Lightning, f.ledger.cfg.FundingProgram).Campaign(creator.PublicKey(), mint)
	if err != nil {
		f.t.Fatalf("derive campaign: %v", err)
	}
	_, err = f.ledger.SendTransaction(f.ctx, f.tx(creator.PublicKey(), f.funding.Initialize(creator.PublicKey(), fund.Key, vault.Key, mint)))
	if err != nil {
		f.t.Fatalf("initialize campaign: %v", err)
	}
	return fund.Key, vault.Key
}

func TestCampaign(t *testing.T) {
	cfg := DefaultConfig
	cfg.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	f := newFixture(t, cfg)
	creator, donor := f.party("creator"), f.party("donor")
	mint, accs := f.setupMint(creator, donor)
	require.NoError(t, f.mintTo(mint, accs[1], 100, nil))

	fund, vault := f.openCampaign(creator, mint)
	data, err := f.ledger.AccountData(f.ctx, fund)
	require.NoError(t, err)
	campaign, err := layout.DecodeFunding(data)
	require.NoError(t, err)
	require.Equal(t, creator.PublicKey(), campaign.Creator)
	require.Equal(t, vault, campaign.Vault)
	require.Equal(t, int64(1_700_000_000), campaign.CreatedAt)
	require.Equal(t, uint64(0), f.value(campaign.Total))

	vaultAcc, err := f.ledger.AccountData(f.ctx, vault)
	require.NoError(t, err)
	va, err := layout.DecodeBalanceAccount(vaultAcc)
	require.NoError(t, err)
	require.Equal(t, fund, va.Owner)

	// A second campaign from the same creator is rejected.
	_, err = f.ledger.SendTransaction(f.ctx, f.tx(creator.PublicKey(), f.funding.Initialize(creator.PublicKey(), fund, vault, mint)))
	requireCode(t, err, program.CodeAlreadyInUse)

	for _, amount := range []uint64{10, 5} {
		ix, err := f.funding.Deposit(donor.PublicKey(), accs[1], vault, mint, fund, Encrypt(amount), nil)
		require.NoError(t, err)
		_, err = f.ledger.SendTransaction(f.ctx, f.tx(donor.PublicKey(), ix))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(85), f.value(f.balance(accs[1])))
	require.Equal(t, uint64(15), f.value(f.balance(vault)))
	data, _ = f.ledger.AccountData(f.ctx, fund)
	campaign, err = layout.DecodeFunding(data)
	require.NoError(t, err)
	require.Equal(t, uint64(15), f.value(campaign.Total))
	require.Equal(t, uint64(2), campaign.ContributorCount)

	// Withdrawing from someone else's campaign fails the seeds check.
	ix, err := f.funding.Withdraw(donor.PublicKey(), accs[1], vault, fund, Encrypt(5), nil)
	require.NoError(t, err)
	_, err = f.ledger.SendTransaction(f.ctx, f.tx(donor.PublicKey(), ix))
	requireCode(t, err, program.CodeConstraintSeeds)

	ix, err = f.funding.Withdraw(creator.PublicKey(), accs[0], vault, fund, Encrypt(5), nil)
	require.NoError(t, err)
	tx := f.tx(creator.PublicKey(), ix)
	sim, err := f.ledger.SimulateTransaction(f.ctx, tx, []solana.PublicKey{vault, fund})
	require.NoError(t, err)
	require.False(t, sim.Failed(), "logs: %q", sim.Logs)
	total, ok := resolve.ScanLogs(sim.Logs, params.TotalLogLabel)
	require.True(t, ok, "no total in logs %q", sim.Logs)
	simTotal, _, err := layout.FundingTotalHandle(sim.Accounts[1])
	require.NoError(t, err)
	require.Equal(t, simTotal, total)

	_, err = f.ledger.SendTransaction(f.ctx, tx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), f.value(f.balance(vault)))
	require.Equal(t, uint64(5), f.value(f.balance(accs[0])))
	require.Equal(t, uint64(10), f.value(total))
}

func TestDepositIntoForeignVaultRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig)
	creator, donor := f.party("creator"), f.party("donor")
	mint, accs := f.setupMint(creator, donor)
	fund, _ := f.openCampaign(creator, mint)

	// The donor's own account is not the campaign vault.
	ix, err := f.funding.Deposit(donor.PublicKey(), accs[1], accs[0], mint, fund, Encrypt(1), nil)
	require.NoError(t, err)
	_, err = f.ledger.SendTransaction(f.ctx, f.tx(donor.PublicKey(), ix))
	requireCode(t, err, program.CodeConstraintSeeds)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
