package scenario

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/tos-network/incofund/internal/simledger"
	"github.com/tos-network/incofund/params"
)

func newRunner(t *testing.T, cfg Config, ledgerCfg simledger.Config) (*Runner, *accounts.Party) {
	t.Helper()
	cfg.Retry = attest.RetryPolicy{Attempts: 4, InitialDelay: time.Millisecond, Multiplier: 1}
	ledger := simledger.New(ledgerCfg)
	srv := httptest.NewServer(simledger.NewOracle(ledger))
	t.Cleanup(srv.Close)

	acfg := attest.DefaultConfig
	acfg.Endpoint = srv.URL
	acfg.RateLimit = 0
	oracle, err := attest.NewClient(acfg, srv.Client())
	require.NoError(t, err)

	admin := mustParty(t, "admin")
	orch, err := orchestrator.New(ledger, simledger.Encryptor{}, orchestrator.Config{
		Network:  ledgerCfg.Network(),
		FeePayer: admin,
	})
	require.NoError(t, err)
	return NewRunner(orch, oracle, ledger, cfg), admin
}

func mustParty(t *testing.T, name string) *accounts.Party {
	t.Helper()
	p, err := accounts.GenerateParty(name)
	if err != nil {
		t.Fatalf("generate %s: %v", name, err)
	}
	return p
}

func requireAmount(t *testing.T, report *Report, label, want string) {
	t.Helper()
	e, ok := report.Entry(label)
	require.True(t, ok, "no entry %q", label)
	require.Equal(t, attest.OutcomeOK, e.Result.Outcome, "%s: %s", label, e.Result.Detail)
	require.Equal(t, want, e.Display(), label)
}

func TestFullScenario(t *testing.T) {
	runner, admin := newRunner(t, DefaultConfig, simledger.DefaultConfig)
	ctx := context.Background()
	users := []*accounts.Party{mustParty(t, "user1"), mustParty(t, "user2")}

	sc, err := runner.Setup(ctx, admin, mustParty(t, "creator"), users)
	require.NoError(t, err)
	require.Len(t, sc.UserAccounts, 2)
	require.False(t, sc.Vault.IsZero())

	report, err := runner.Run(ctx, sc)
	require.NoError(t, err)

	requireAmount(t, report, "user1", "90.000000000")
	requireAmount(t, report, "user2", "95.000000000")
	requireAmount(t, report, "vault", "10.000000000")
	requireAmount(t, report, "total", "10.000000000")
	require.Equal(t, uint64(2), report.Contributors)
	require.False(t, report.Finalized)

	// Withdrawals bind the vault and the total, not the destination.
	payout, ok := report.Entry("payout")
	require.True(t, ok)
	require.Equal(t, attest.OutcomeUnauthorized, payout.Result.Outcome)

	for _, op := range sc.Operations {
		require.Equal(t, orchestrator.StateCommitted, op.State(), op.String())
	}

	var out bytes.Buffer
	report.Print(&out)
	require.Contains(t, out.String(), "90.000000000")
	require.Contains(t, out.String(), "not_allowed")
	require.Contains(t, out.String(), sc.Vault.String())
	require.Contains(t, out.String(), "contributors")
}

func TestFundedBalanceDecrypts(t *testing.T) {
	runner, admin := newRunner(t, DefaultConfig, simledger.DefaultConfig)
	ctx := context.Background()
	sc, err := runner.Setup(ctx, admin, mustParty(t, "creator"), []*accounts.Party{mustParty(t, "user1")})
	require.NoError(t, err)
	require.NoError(t, runner.Fund(ctx, sc))

	report, err := runner.Snapshot(ctx, sc)
	require.NoError(t, err)
	requireAmount(t, report, "user1", "100.000000000")
	requireAmount(t, report, "vault", "0.000000000")
	require.Zero(t, report.Contributors)

	// A fresh campaign total was never bound to anyone.
	require.Equal(t, attest.OutcomeUnauthorized, report.Total.Result.Outcome)
}

func TestScenarioWaitsForIndexing(t *testing.T) {
	lagged := simledger.DefaultConfig
	lagged.IndexLag = 2
	runner, admin := newRunner(t, DefaultConfig, lagged)
	ctx := context.Background()

	sc, err := runner.Setup(ctx, admin, mustParty(t, "creator"), []*accounts.Party{mustParty(t, "user1")})
	require.NoError(t, err)
	require.NoError(t, runner.Fund(ctx, sc))
	report, err := runner.Snapshot(ctx, sc)
	require.NoError(t, err)
	requireAmount(t, report, "user1", "100.000000000")
}

func TestSetupRequiresUsers(t *testing.T) {
	runner, admin := newRunner(t, DefaultConfig, simledger.DefaultConfig)
	_, err := runner.Setup(context.Background(), admin, mustParty(t, "creator"), nil)
	require.ErrorIs(t, err, errNoUsers)
}

func TestDepositAmountsAreConfigurable(t *testing.T) {
	cfg := DefaultConfig
	cfg.Deposits = []uint64{params.TokenMultiplier}
	cfg.Withdraw = params.TokenMultiplier
	runner, admin := newRunner(t, cfg, simledger.DefaultConfig)
	ctx := context.Background()

	sc, err := runner.Setup(ctx, admin, mustParty(t, "creator"), []*accounts.Party{mustParty(t, "user1"), mustParty(t, "user2")})
	require.NoError(t, err)
	report, err := runner.Run(ctx, sc)
	require.NoError(t, err)
	requireAmount(t, report, "user1", "99.000000000")
	requireAmount(t, report, "user2", "100.000000000")
	requireAmount(t, report, "vault", "0.000000000")
	require.Equal(t, uint64(1), report.Contributors)
}
