package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/tos-network/incofund/ledgerclient"
	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

var (
	signerFlag = &cli.StringFlag{
		Name:  "signer",
		Usage: "Key file of the party signing the operation (default: --keyfile)",
	}
	amountFlag = &cli.StringFlag{
		Name:  "amount",
		Usage: "Token amount, e.g. 10.5",
	}
	mintFlag = &cli.StringFlag{
		Name:  "mint",
		Usage: "Mint address",
	}
	accountFlag = &cli.StringFlag{
		Name:  "account",
		Usage: "Balance account address",
	}
)

var errNoEncryptEndpoint = errors.New("no encryption service endpoint configured (use --encrypt)")

// noEncryptor serves networks without an encryption service; only
// operations carrying no amount can be submitted.
type noEncryptor struct{}

func (noEncryptor) Encrypt(context.Context, uint64) ([]byte, error) {
	return nil, errNoEncryptEndpoint
}

// env is the ledger connection and orchestrator shared by the operation
// commands.
type env struct {
	cfg    *fundConfig
	payer  *accounts.Party
	ledger *ledgerclient.Client
	orch   *orchestrator.Orchestrator
}

func makeEnv(ctx *cli.Context) *env {
	cfg := makeConfig(ctx)
	if err := cfg.Network.Validate(); err != nil {
		utils.Fatalf("Invalid network configuration: %v", err)
	}
	payer := utils.LoadParty(ctx, utils.KeyFileFlag, "payer")
	ledger := dialLedger(ctx, cfg)

	var (
		enc incofund.Encryptor = noEncryptor{}
		err error
	)
	if cfg.Network.EncryptEndpoint != "" {
		if enc, err = attest.NewEncryptClient(cfg.encryptConfig(), nil); err != nil {
			utils.Fatalf("Failed to create encryption client: %v", err)
		}
	}
	orch, err := orchestrator.New(ledger, enc, orchestrator.Config{
		Network:  &cfg.Network,
		FeePayer: payer,
		Confirm:  ctx.Bool(utils.ConfirmFlag.Name),
	})
	if err != nil {
		utils.Fatalf("%v", err)
	}
	log.Debug("Connected to ledger", "network", cfg.Network.Name, "rpc", cfg.Network.RPCEndpoint)
	return &env{cfg: cfg, payer: payer, ledger: ledger, orch: orch}
}

func dialLedger(ctx *cli.Context, cfg *fundConfig) *ledgerclient.Client {
	if cfg.Network.RPCEndpoint == "" {
		utils.Fatalf("No ledger endpoint configured (use --%s)", utils.RPCEndpointFlag.Name)
	}
	c, err := rpc.DialContext(ctx.Context, cfg.Network.RPCEndpoint)
	if err != nil {
		utils.Fatalf("Failed to connect to %s: %v", cfg.Network.RPCEndpoint, err)
	}
	return ledgerclient.NewClient(c, cfg.Ledger)
}

func (e *env) close() {
	e.ledger.Close()
}

// signer returns the party named by --signer, or the fee payer.
func (e *env) signer(ctx *cli.Context, label string) *accounts.Party {
	if !ctx.IsSet(signerFlag.Name) {
		return e.payer
	}
	return utils.LoadParty(ctx, signerFlag, label)
}

func mustAmount(ctx *cli.Context) uint64 {
	s := ctx.String(amountFlag.Name)
	if s == "" {
		utils.Fatalf("Missing --%s", amountFlag.Name)
	}
	amount, err := attest.ParseAmount(s, params.Decimals)
	if err != nil {
		utils.Fatalf("%v", err)
	}
	return amount
}

type outputBinding struct {
	Handle    string `json:"handle"`
	Party     string `json:"party"`
	Allowance string `json:"allowance"`
}

type outputOperation struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	State     string          `json:"state"`
	Signature string          `json:"signature,omitempty"`
	Accounts  []string        `json:"accounts"`
	Bindings  []outputBinding `json:"bindings,omitempty"`
	Error     string          `json:"error,omitempty"`
	Logs      []string        `json:"logs,omitempty"`
}

func newOutputOperation(op *orchestrator.Operation) outputOperation {
	out := outputOperation{
		ID:    op.ID.String(),
		Kind:  op.Kind().String(),
		State: op.State().String(),
	}
	if op.Signature != (solana.Signature{}) {
		out.Signature = op.Signature.String()
	}
	for _, acc := range op.Intent.Accounts {
		out.Accounts = append(out.Accounts, acc.String())
	}
	for _, b := range op.Bindings {
		out.Bindings = append(out.Bindings, outputBinding{
			Handle:    b.Handle.String(),
			Party:     b.Party.String(),
			Allowance: b.Allowance.String(),
		})
	}
	if err := op.Err(); err != nil {
		out.Error = err.Error()
		var logErr incofund.LogError
		if errors.As(err, &logErr) {
			out.Logs = logErr.TxLogs()
		}
	}
	return out
}

// printOperation reports op and returns err, the error the operation
// finished with.
func printOperation(ctx *cli.Context, op *orchestrator.Operation, err error) error {
	if op == nil {
		return err
	}
	out := newOutputOperation(op)
	if ctx.Bool(utils.JSONFlag.Name) {
		mustPrintJSON(ctx.App.Writer, out)
		return err
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "Operation:  %s (%s)\n", out.ID, out.Kind)
	fmt.Fprintf(w, "State:      %s\n", out.State)
	if out.Signature != "" {
		fmt.Fprintf(w, "Signature:  %s\n", out.Signature)
	}
	for _, b := range out.Bindings {
		fmt.Fprintf(w, "Allowance:  %s (handle %s, party %s)\n", b.Allowance, b.Handle, b.Party)
	}
	for _, l := range out.Logs {
		fmt.Fprintf(w, "  %s\n", l)
	}
	return err
}

// mustPrintJSON prints the JSON encoding of the given object and
// exits the program with an error message when the marshaling fails.
func mustPrintJSON(w io.Writer, jsonObject interface{}) {
	str, err := json.MarshalIndent(jsonObject, "", "  ")
	if err != nil {
		utils.Fatalf("Failed to marshal JSON object: %v", err)
	}
	fmt.Fprintln(w, string(str))
}
