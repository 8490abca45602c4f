// Package scenario runs the end-to-end funding flow: a mint, one balance per
// contributor, a campaign, deposits from each contributor and a withdrawal
// by the creator, followed by a decrypted snapshot of every balance.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/tos-network/incofund/params"
)

// Context is the state accumulated by a scenario run. Steps read and extend
// it; nothing is kept in package state.
type Context struct {
	Admin   *accounts.Party // mint authority
	Creator *accounts.Party
	Users   []*accounts.Party

	Mint         solana.PublicKey
	UserAccounts []solana.PublicKey // parallel to Users
	Payout       solana.PublicKey   // creator's balance account
	Funding      solana.PublicKey
	Vault        solana.PublicKey

	Operations []*orchestrator.Operation
}

func (sc *Context) record(op *orchestrator.Operation) {
	if op != nil {
		sc.Operations = append(sc.Operations, op)
	}
}

// Config holds the amounts of a run, in base units.
type Config struct {
	MintAmount uint64   // minted to every user
	Deposits   []uint64 // deposit of user i; users past the list do not deposit
	Withdraw   uint64
	Retry      attest.RetryPolicy

	// Parallel bounds concurrent reads while taking a snapshot.
	Parallel int
}

var DefaultConfig = Config{
	MintAmount: 100 * params.TokenMultiplier,
	Deposits:   []uint64{10 * params.TokenMultiplier, 5 * params.TokenMultiplier},
	Withdraw:   5 * params.TokenMultiplier,
	Retry:      attest.DefaultRetryPolicy,
	Parallel:   4,
}

var errNoUsers = errors.New("scenario: at least one user is required")

// Runner executes scenario steps through an orchestrator and inspects the
// results through the decryption client.
type Runner struct {
	orch   *orchestrator.Orchestrator
	oracle *attest.Client
	reader incofund.AccountReader
	cfg    Config
}

func NewRunner(orch *orchestrator.Orchestrator, oracle *attest.Client, reader incofund.AccountReader, cfg Config) *Runner {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &Runner{orch: orch, oracle: oracle, reader: reader, cfg: cfg}
}

// Setup creates the mint, a balance account per user and for the creator,
// and the creator's campaign.
func (r *Runner) Setup(ctx context.Context, admin, creator *accounts.Party, users []*accounts.Party) (*Context, error) {
	if len(users) == 0 {
		return nil, errNoUsers
	}
	sc := &Context{Admin: admin, Creator: creator, Users: users}

	mint, err := accounts.GenerateParty("mint")
	if err != nil {
		return nil, err
	}
	op, err := r.orch.InitializeMint(ctx, mint, admin.PublicKey(), nil)
	sc.record(op)
	if err != nil {
		return nil, fmt.Errorf("scenario: initialize mint: %w", err)
	}
	sc.Mint = mint.PublicKey()
	log.Info("Initialized mint", "mint", sc.Mint, "decimals", params.Decimals)

	for _, user := range users {
		acc, err := r.newAccount(ctx, sc, user)
		if err != nil {
			return nil, err
		}
		sc.UserAccounts = append(sc.UserAccounts, acc)
	}
	if sc.Payout, err = r.newAccount(ctx, sc, creator); err != nil {
		return nil, err
	}

	op, funding, vault, err := r.orch.InitializeCampaign(ctx, creator, sc.Mint)
	sc.record(op)
	if err != nil {
		return nil, fmt.Errorf("scenario: initialize campaign: %w", err)
	}
	sc.Funding, sc.Vault = funding, vault
	log.Info("Opened campaign", "creator", creator.PublicKey(), "funding", funding, "vault", vault)
	return sc, nil
}

func (r *Runner) newAccount(ctx context.Context, sc *Context, owner *accounts.Party) (solana.PublicKey, error) {
	acc, err := accounts.GenerateParty(owner.Name + "-account")
	if err != nil {
		return solana.PublicKey{}, err
	}
	op, err := r.orch.InitializeAccount(ctx, acc, sc.Mint, owner.PublicKey())
	sc.record(op)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("scenario: initialize account of %s: %w", owner.Name, err)
	}
	log.Debug("Initialized balance account", "owner", owner.Name, "account", acc.PublicKey())
	return acc.PublicKey(), nil
}

// Fund mints the configured amount to every user; each new balance is
// readable by its owner.
func (r *Runner) Fund(ctx context.Context, sc *Context) error {
	for i, user := range sc.Users {
		op, err := r.orch.Mint(ctx, orchestrator.MintRequest{
			Authority: sc.Admin,
			Mint:      sc.Mint,
			Account:   sc.UserAccounts[i],
			Amount:    r.cfg.MintAmount,
			Reader:    user.PublicKey(),
		})
		sc.record(op)
		if err != nil {
			return fmt.Errorf("scenario: mint to %s: %w", user.Name, err)
		}
		log.Info("Minted", "user", user.Name, "amount", r.cfg.MintAmount)
	}
	return nil
}

// Deposit makes every configured user deposit into the campaign.
func (r *Runner) Deposit(ctx context.Context, sc *Context) error {
	for i, amount := range r.cfg.Deposits {
		if i >= len(sc.Users) {
			break
		}
		user := sc.Users[i]
		op, err := r.orch.Deposit(ctx, orchestrator.DepositRequest{
			Depositor: user,
			Source:    sc.UserAccounts[i],
			Creator:   sc.Creator.PublicKey(),
			Amount:    amount,
		})
		sc.record(op)
		if err != nil {
			return fmt.Errorf("scenario: deposit of %s: %w", user.Name, err)
		}
		log.Info("Deposited", "user", user.Name, "amount", amount)
	}
	return nil
}

// Withdraw moves the configured amount from the vault to the creator's
// payout account.
func (r *Runner) Withdraw(ctx context.Context, sc *Context) error {
	op, err := r.orch.Withdraw(ctx, orchestrator.WithdrawRequest{
		Creator:     sc.Creator,
		Funding:     sc.Funding,
		Destination: sc.Payout,
		Amount:      r.cfg.Withdraw,
	})
	sc.record(op)
	if err != nil {
		return fmt.Errorf("scenario: withdraw: %w", err)
	}
	log.Info("Withdrew", "creator", sc.Creator.Name, "amount", r.cfg.Withdraw)
	return nil
}

// Run executes setup-independent steps in order and returns the final
// snapshot.
func (r *Runner) Run(ctx context.Context, sc *Context) (*Report, error) {
	steps := []struct {
		name string
		fn   func(context.Context, *Context) error
	}{
		{"fund", r.Fund},
		{"deposit", r.Deposit},
		{"withdraw", r.Withdraw},
	}
	for _, step := range steps {
		if err := step.fn(ctx, sc); err != nil {
			return nil, err
		}
		log.Debug("Scenario step done", "step", step.name)
	}
	return r.Snapshot(ctx, sc)
}
