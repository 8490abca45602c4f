package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/internal/simledger"
	"github.com/tos-network/incofund/params"
)

type testEnv struct {
	ledger  *simledger.Ledger
	token   program.TokenProgram
	admin   *accounts.Party
	mint    solana.PublicKey
	account solana.PublicKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := simledger.DefaultConfig
	env := &testEnv{
		ledger: simledger.New(cfg),
		token:  program.TokenProgram{ID: cfg.TokenProgram, Lightning: cfg.Lightning},
	}
	admin, _ := accounts.GenerateParty("admin")
	mint, _ := accounts.GenerateParty("mint")
	account, _ := accounts.GenerateParty("account")
	env.admin, env.mint, env.account = admin, mint.PublicKey(), account.PublicKey()

	keys := accounts.NewKeyring(admin, mint, account)
	for _, ix := range []solana.Instruction{
		env.token.InitializeMint(env.mint, admin.PublicKey(), program.InitializeMintArgs{Decimals: params.Decimals, MintAuthority: admin.PublicKey()}),
		env.token.InitializeAccount(env.account, env.mint, admin.PublicKey(), admin.PublicKey()),
	} {
		bh, _ := env.ledger.LatestBlockhash(context.Background())
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh, solana.TransactionPayer(admin.PublicKey()))
		if err != nil {
			t.Fatalf("failed to build setup transaction: %v", err)
		}
		if err := keys.SignTransaction(tx, false); err != nil {
			t.Fatalf("failed to sign setup transaction: %v", err)
		}
		if _, err := env.ledger.SendTransaction(context.Background(), tx); err != nil {
			t.Fatalf("setup transaction failed: %v", err)
		}
	}
	return env
}

func (env *testEnv) mintTo(t *testing.T, authority solana.PublicKey, amount uint64) solana.Instruction {
	t.Helper()
	ix, err := env.token.MintTo(env.mint, env.account, authority, program.CiphertextArgs{Ciphertext: simledger.Encrypt(amount)}, nil)
	if err != nil {
		t.Fatalf("failed to build mint_to: %v", err)
	}
	return ix
}

func TestResolveMatchesCommit(t *testing.T) {
	env := newTestEnv(t)
	res, err := New(env.ledger).Resolve(context.Background(), Request{
		Instructions: []solana.Instruction{env.mintTo(t, env.admin.PublicKey(), 100*params.TokenMultiplier)},
		FeePayer:     env.admin.PublicKey(),
		Signers:      accounts.NewKeyring(env.admin),
		Balances:     []solana.PublicKey{env.account},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	h, err := res.Handle(env.account)
	if err != nil {
		t.Fatalf("missing handle: %v", err)
	}
	if h.IsZero() {
		t.Fatal("resolved the zero handle")
	}
	if res.Blockhash == (solana.Hash{}) || res.UnitsConsumed == 0 || len(res.Logs) == 0 {
		t.Fatalf("incomplete resolution: %+v", res)
	}

	// Nothing was committed.
	data, _ := env.ledger.AccountData(context.Background(), env.account)
	if cur, _, _ := layout.BalanceHandle(data); !cur.IsZero() {
		t.Fatalf("simulation committed handle %s", cur)
	}
	// Committing the same operation on the same state yields the resolved handle.
	bh, _ := env.ledger.LatestBlockhash(context.Background())
	tx, _ := solana.NewTransaction([]solana.Instruction{env.mintTo(t, env.admin.PublicKey(), 100*params.TokenMultiplier)}, bh, solana.TransactionPayer(env.admin.PublicKey()))
	require.NoError(t, accounts.NewKeyring(env.admin).SignTransaction(tx, false))
	_, err = env.ledger.SendTransaction(context.Background(), tx)
	require.NoError(t, err)
	data, _ = env.ledger.AccountData(context.Background(), env.account)
	committed, _, err := layout.BalanceHandle(data)
	require.NoError(t, err)
	require.Equal(t, h, committed)
}

func TestResolveWithoutSigners(t *testing.T) {
	env := newTestEnv(t)
	res, err := New(env.ledger).Resolve(context.Background(), Request{
		Instructions: []solana.Instruction{env.mintTo(t, env.admin.PublicKey(), 1)},
		FeePayer:     env.admin.PublicKey(),
		Balances:     []solana.PublicKey{env.account},
	})
	require.NoError(t, err)
	_, err = res.Handle(env.account)
	require.NoError(t, err)
}

func TestResolveAbsentAndUnrequested(t *testing.T) {
	env := newTestEnv(t)
	missing := solana.NewWallet().PublicKey()
	res, err := New(env.ledger).Resolve(context.Background(), Request{
		Instructions: []solana.Instruction{env.mintTo(t, env.admin.PublicKey(), 1)},
		FeePayer:     env.admin.PublicKey(),
		Balances:     []solana.PublicKey{env.account, missing},
		Fundings:     []solana.PublicKey{missing},
	})
	require.NoError(t, err)

	_, err = res.Handle(missing)
	require.ErrorIs(t, err, ErrAccountAbsent)
	_, err = res.Total(missing)
	require.ErrorIs(t, err, ErrAccountAbsent)
	_, err = res.Handle(env.mint)
	require.ErrorIs(t, err, ErrNotRequested)
	_, err = res.Total(env.account)
	require.ErrorIs(t, err, ErrNotRequested)

	require.Len(t, res.Balances(), 1)
	require.Empty(t, res.Totals())
}

func TestResolveSimulationFailure(t *testing.T) {
	env := newTestEnv(t)
	stranger := solana.NewWallet().PublicKey()
	_, err := New(env.ledger).Resolve(context.Background(), Request{
		Instructions: []solana.Instruction{env.mintTo(t, stranger, 1)},
		FeePayer:     env.admin.PublicKey(),
		Balances:     []solana.PublicKey{env.account},
	})
	if !errors.Is(err, ErrSimulationFailed) {
		t.Fatalf("expected simulation failure, got %v", err)
	}
	var serr *SimulationError
	require.True(t, errors.As(err, &serr))
	require.NotNil(t, serr.Program)
	require.Equal(t, program.CodeOwnerMismatch, serr.Program.Code)
	require.NotEmpty(t, serr.TxLogs())

	var logErr incofund.LogError
	require.True(t, errors.As(err, &logErr))
}

func TestResolveNoInstructions(t *testing.T) {
	_, err := New(nil).Resolve(context.Background(), Request{})
	require.ErrorIs(t, err, ErrNoInstructions)
}

// shortBackend returns fewer snapshots than requested.
type shortBackend struct{}

func (shortBackend) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1}, nil
}

func (shortBackend) SimulateTransaction(context.Context, *solana.Transaction, []solana.PublicKey) (*incofund.SimulationResult, error) {
	return &incofund.SimulationResult{}, nil
}

func TestResolveSnapshotCount(t *testing.T) {
	env := newTestEnv(t)
	_, err := New(shortBackend{}).Resolve(context.Background(), Request{
		Instructions: []solana.Instruction{env.mintTo(t, env.admin.PublicKey(), 1)},
		FeePayer:     env.admin.PublicKey(),
		Balances:     []solana.PublicKey{env.account},
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSimulationFailed))
}

func TestScanLogs(t *testing.T) {
	logs := []string{
		"Program 9SUAHZ5CLyv6BdfGQLdb15KE1DanR9m6TdqHbq7ZaQWG invoke [1]",
		"Program log: Instruction: Withdraw",
		"Program log:    Updated funding handle: 295853802519287425614227375853165216893",
		"Program log:    Updated funding handle: 7",
	}
	h, ok := ScanLogs(logs, params.TotalLogLabel)
	require.True(t, ok)
	require.Equal(t, handle.MustFromDecimal("295853802519287425614227375853165216893"), h)

	_, ok = ScanLogs(logs[:2], params.TotalLogLabel)
	require.False(t, ok)

	// Labels without digits are skipped.
	h, ok = ScanLogs([]string{"Updated funding handle: none", "Updated funding handle: 12"}, params.TotalLogLabel)
	require.True(t, ok)
	require.Equal(t, handle.FromUint64(12), h)
}
