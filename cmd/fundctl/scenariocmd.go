package main

import (
	"fmt"
	"net/http/httptest"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/tos-network/incofund/internal/scenario"
	"github.com/tos-network/incofund/internal/simledger"
	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

var (
	simFlag = &cli.BoolFlag{
		Name:  "sim",
		Usage: "Run against an in-process simulated ledger and oracle",
	}
	simLagFlag = &cli.IntFlag{
		Name:  "sim.lag",
		Usage: "Decryption requests answered 'not found' for every fresh handle of the simulated oracle",
	}
	usersFlag = &cli.IntFlag{
		Name:  "users",
		Usage: "Number of contributors",
		Value: 2,
	}
	mintAmountFlag = &cli.StringFlag{
		Name:  "mint-amount",
		Usage: "Tokens minted to every contributor",
	}
	depositFlag = &cli.StringSliceFlag{
		Name:  "deposit",
		Usage: "Deposit of each contributor in order, in tokens",
	}
	withdrawFlag = &cli.StringFlag{
		Name:  "withdraw",
		Usage: "Tokens withdrawn by the creator",
	}
)

var commandScenario = &cli.Command{
	Action: runScenario,
	Name:   "scenario",
	Usage:  "Run the end-to-end funding flow and print every decrypted balance",
	Flags: []cli.Flag{
		simFlag,
		simLagFlag,
		usersFlag,
		mnemonicFlag,
		mintAmountFlag,
		depositFlag,
		withdrawFlag,
		utils.JSONFlag,
	},
	Description: `
Creates a mint, a balance account per contributor and for the creator, and
the creator's campaign. Every contributor is funded and deposits, the creator
withdraws, and each balance is decrypted by its owner.

The fee payer (--keyfile) is the mint authority. Contributors and the creator
get fresh keys, or keys derived from --mnemonic.`,
}

// simulation is an in-process ledger with its oracle served over HTTP.
type simulation struct {
	ledger *simledger.Ledger
	server *httptest.Server
	orch   *orchestrator.Orchestrator
	oracle *attest.Client
	admin  *accounts.Party
}

func newSimulation(ctx *cli.Context, cfg *fundConfig) *simulation {
	lcfg := simledger.DefaultConfig
	lcfg.IndexLag = ctx.Int(simLagFlag.Name)
	s := &simulation{
		ledger: simledger.New(lcfg),
		admin:  newAddress("admin"),
	}
	s.server = httptest.NewServer(simledger.NewOracle(s.ledger))

	ocfg := cfg.Oracle
	ocfg.Endpoint = s.server.URL
	ocfg.RateLimit = 0
	oracle, err := attest.NewClient(ocfg, s.server.Client())
	if err != nil {
		utils.Fatalf("Failed to create decryption client: %v", err)
	}
	s.oracle = oracle

	s.orch, err = orchestrator.New(s.ledger, simledger.Encryptor{}, orchestrator.Config{
		Network:  lcfg.Network(),
		FeePayer: s.admin,
		Confirm:  true,
	})
	if err != nil {
		utils.Fatalf("%v", err)
	}
	log.Info("Started simulated ledger", "oracle", s.server.URL, "lag", lcfg.IndexLag)
	return s
}

func (s *simulation) close() {
	s.server.Close()
}

func parseTokens(flag cli.Flag, s string) uint64 {
	amount, err := attest.ParseAmount(s, params.Decimals)
	if err != nil {
		utils.Fatalf("Invalid --%s: %v", flag.Names()[0], err)
	}
	return amount
}

func setScenarioConfig(ctx *cli.Context, cfg *scenarioConfig) {
	if ctx.IsSet(mintAmountFlag.Name) {
		cfg.MintAmount = parseTokens(mintAmountFlag, ctx.String(mintAmountFlag.Name))
	}
	if ctx.IsSet(depositFlag.Name) {
		cfg.Deposits = cfg.Deposits[:0]
		for _, s := range ctx.StringSlice(depositFlag.Name) {
			cfg.Deposits = append(cfg.Deposits, parseTokens(depositFlag, s))
		}
	}
	if ctx.IsSet(withdrawFlag.Name) {
		cfg.Withdraw = parseTokens(withdrawFlag, ctx.String(withdrawFlag.Name))
	}
}

// scenarioParties returns the creator and the contributors.
func scenarioParties(ctx *cli.Context, n int) (*accounts.Party, []*accounts.Party) {
	mnemonic := ctx.String(mnemonicFlag.Name)
	party := func(name string) *accounts.Party {
		if mnemonic == "" {
			return newAddress(name)
		}
		p, err := accounts.PartyFromMnemonic(name, mnemonic, "", name)
		if err != nil {
			utils.Fatalf("Failed to derive %s key: %v", name, err)
		}
		return p
	}
	users := make([]*accounts.Party, n)
	for i := range users {
		users[i] = party(fmt.Sprintf("user%d", i+1))
	}
	return party("creator"), users
}

func runScenario(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	setScenarioConfig(ctx, &cfg.Scenario)
	n := ctx.Int(usersFlag.Name)
	if n < 1 {
		utils.Fatalf("At least one contributor is required")
	}

	var (
		orch   *orchestrator.Orchestrator
		oracle *attest.Client
		reader incofund.AccountReader
		admin  *accounts.Party
	)
	if ctx.Bool(simFlag.Name) {
		s := newSimulation(ctx, cfg)
		defer s.close()
		orch, oracle, reader, admin = s.orch, s.oracle, s.ledger, s.admin
	} else {
		e := makeEnv(ctx)
		defer e.close()
		var err error
		if oracle, err = attest.NewClient(cfg.Oracle, nil); err != nil {
			utils.Fatalf("Failed to create decryption client: %v", err)
		}
		orch, reader, admin = e.orch, e.ledger, e.payer
	}

	creator, users := scenarioParties(ctx, n)
	runner := scenario.NewRunner(orch, oracle, reader, cfg.Scenario.runnerConfig(cfg.Retry))
	sc, err := runner.Setup(ctx.Context, admin, creator, users)
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx.Context, sc)
	if err != nil {
		return err
	}
	printReport(ctx, sc, report)
	return nil
}

type outputEntry struct {
	Label   string `json:"label"`
	Account string `json:"account"`
	Handle  string `json:"handle"`
	Outcome string `json:"outcome"`
	Amount  string `json:"amount,omitempty"`
}

type outputScenario struct {
	Mint         string            `json:"mint"`
	Campaign     string            `json:"campaign"`
	Vault        string            `json:"vault"`
	Balances     []outputEntry     `json:"balances"`
	Total        outputEntry       `json:"total"`
	Contributors uint64            `json:"contributors"`
	Finalized    bool              `json:"finalized"`
	Operations   []outputOperation `json:"operations"`
}

func newOutputEntry(e scenario.Entry) outputEntry {
	out := outputEntry{
		Label:   e.Label,
		Account: e.Account.String(),
		Handle:  e.Handle.String(),
		Outcome: e.Result.Outcome.String(),
	}
	if e.Result.Outcome == attest.OutcomeOK {
		out.Amount = e.Display()
	}
	return out
}

func printReport(ctx *cli.Context, sc *scenario.Context, report *scenario.Report) {
	if !ctx.Bool(utils.JSONFlag.Name) {
		fmt.Fprintf(ctx.App.Writer, "Committed %d operations\n", len(sc.Operations))
		report.Print(ctx.App.Writer)
		return
	}
	out := outputScenario{
		Mint:         sc.Mint.String(),
		Campaign:     sc.Funding.String(),
		Vault:        sc.Vault.String(),
		Total:        newOutputEntry(report.Total),
		Contributors: report.Contributors,
		Finalized:    report.Finalized,
	}
	for _, e := range report.Balances {
		out.Balances = append(out.Balances, newOutputEntry(e))
	}
	for _, op := range sc.Operations {
		out.Operations = append(out.Operations, newOutputOperation(op))
	}
	mustPrintJSON(ctx.App.Writer, out)
}
