package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

var (
	dumpFlag = &cli.BoolFlag{
		Name:  "dump",
		Usage: "Dump the decoded account structure",
	}
	handleFlag = &cli.StringFlag{
		Name:  "handle",
		Usage: "Decimal ciphertext handle",
	}
	partyFlag = &cli.StringFlag{
		Name:  "party",
		Usage: "Party address",
	}
	lamportsFlag = &cli.Uint64Flag{
		Name:  "lamports",
		Usage: "Lamports to request",
		Value: params.DefaultAirdropSize,
	}
	recipientFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "Recipient address (default: the fee payer)",
	}
)

var (
	commandInspect = &cli.Command{
		Action:    inspect,
		Name:      "inspect",
		Usage:     "Decode a mint, balance or campaign account",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{dumpFlag, utils.JSONFlag},
	}
	commandDecrypt = &cli.Command{
		Action: decrypt,
		Name:   "decrypt",
		Usage:  "Decrypt the balance of an account or the total of a campaign",
		Flags:  []cli.Flag{signerFlag, accountFlag, utils.JSONFlag},
		Description: `
Reads the handle stored in --account and asks the attested decryption service
for its plaintext on behalf of the signer. Campaign accounts yield their
encrypted running total. Handles that are not indexed yet are retried.`,
	}
	commandDerive = &cli.Command{
		Name:  "derive",
		Usage: "Derive program addresses",
		Subcommands: []*cli.Command{
			{
				Action: deriveCampaign,
				Name:   "campaign",
				Usage:  "Derive the campaign and vault addresses of a creator",
				Flags:  []cli.Flag{creatorFlag, mintFlag, utils.JSONFlag},
			},
			{
				Action: deriveAllowance,
				Name:   "allowance",
				Usage:  "Derive the allowance record granting a party access to a handle",
				Flags:  []cli.Flag{handleFlag, partyFlag, utils.JSONFlag},
			},
		},
	}
	commandAirdrop = &cli.Command{
		Action: airdrop,
		Name:   "airdrop",
		Usage:  "Request lamports from a development ledger",
		Flags:  []cli.Flag{recipientFlag, lamportsFlag, utils.JSONFlag},
	}
)

type outputAccount struct {
	Address string      `json:"address"`
	Kind    string      `json:"kind"`
	Account interface{} `json:"account"`
}

func inspect(ctx *cli.Context) error {
	addr, err := utils.ParsePublicKey(ctx.Args().First())
	if err != nil {
		utils.Fatalf("Invalid address %q: %v", ctx.Args().First(), err)
	}
	cfg := makeConfig(ctx)
	ledger := dialLedger(ctx, cfg)
	defer ledger.Close()

	data, err := ledger.AccountData(ctx.Context, addr)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("account %s not found", addr)
	}
	kind, ok := layout.Kind(data)
	if !ok {
		return fmt.Errorf("account %s: unknown account type", addr)
	}
	var acc interface{}
	switch kind {
	case layout.MintAccountName:
		acc, err = layout.DecodeMint(data)
	case layout.BalanceAccountName:
		acc, err = layout.DecodeBalanceAccount(data)
	case layout.FundingAccountName:
		acc, err = layout.DecodeFunding(data)
	}
	if err != nil {
		return err
	}

	switch {
	case ctx.Bool(dumpFlag.Name):
		dumper := spew.ConfigState{Indent: "    "}
		fmt.Fprintf(ctx.App.Writer, "%s (%s)\n%s", addr, kind, dumper.Sdump(acc))
	case ctx.Bool(utils.JSONFlag.Name):
		mustPrintJSON(ctx.App.Writer, outputAccount{Address: addr.String(), Kind: kind, Account: acc})
	default:
		printAccount(ctx, addr, acc)
	}
	return nil
}

func optionalKey(pk *solana.PublicKey) string {
	if pk == nil {
		return "none"
	}
	return pk.String()
}

func printAccount(ctx *cli.Context, addr solana.PublicKey, acc interface{}) {
	w := ctx.App.Writer
	fmt.Fprintln(w, "Address:          ", addr)
	switch acc := acc.(type) {
	case *layout.Mint:
		fmt.Fprintln(w, "Type:              mint")
		fmt.Fprintln(w, "Mint authority:   ", optionalKey(acc.MintAuthority))
		fmt.Fprintln(w, "Freeze authority: ", optionalKey(acc.FreezeAuthority))
		fmt.Fprintln(w, "Supply handle:    ", acc.Supply)
		fmt.Fprintln(w, "Decimals:         ", acc.Decimals)
	case *layout.BalanceAccount:
		fmt.Fprintln(w, "Type:              balance")
		fmt.Fprintln(w, "Mint:             ", acc.Mint)
		fmt.Fprintln(w, "Owner:            ", acc.Owner)
		fmt.Fprintln(w, "Amount handle:    ", acc.Amount)
		fmt.Fprintln(w, "State:            ", acc.State)
	case *layout.Funding:
		fmt.Fprintln(w, "Type:              campaign")
		fmt.Fprintln(w, "Creator:          ", acc.Creator)
		fmt.Fprintln(w, "Vault:            ", acc.Vault)
		fmt.Fprintln(w, "Mint:             ", acc.Mint)
		fmt.Fprintln(w, "Total handle:     ", acc.Total)
		fmt.Fprintln(w, "Contributors:     ", acc.ContributorCount)
		fmt.Fprintln(w, "Finalized:        ", acc.IsFinalized)
	}
}

type outputDecrypt struct {
	Account   string `json:"account"`
	Reader    string `json:"reader"`
	Handle    string `json:"handle"`
	Outcome   string `json:"outcome"`
	Plaintext string `json:"plaintext,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func decrypt(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	account := utils.MustPublicKey(ctx, accountFlag)
	readerKey := cli.Flag(utils.KeyFileFlag)
	if ctx.IsSet(signerFlag.Name) {
		readerKey = signerFlag
	}
	reader := utils.LoadParty(ctx, readerKey, "reader")
	oracle, err := attest.NewClient(cfg.Oracle, nil)
	if err != nil {
		utils.Fatalf("Failed to create decryption client: %v", err)
	}
	ledger := dialLedger(ctx, cfg)
	defer ledger.Close()

	data, err := ledger.AccountData(ctx.Context, account)
	if err != nil {
		return err
	}
	var (
		h       handle.Handle
		present bool
	)
	if kind, _ := layout.Kind(data); kind == layout.FundingAccountName {
		h, present, err = layout.FundingTotalHandle(data)
	} else {
		h, present, err = layout.BalanceHandle(data)
	}
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("account %s not found", account)
	}

	// The zero handle is the initial value of every balance and total.
	res := attest.Result{Handle: h, Outcome: attest.OutcomeOK, Plaintext: "0"}
	if !h.IsZero() {
		res = oracle.WaitDecrypt(ctx.Context, h, reader, cfg.Retry)
	}
	out := outputDecrypt{
		Account:   account.String(),
		Reader:    reader.PublicKey().String(),
		Handle:    h.String(),
		Outcome:   res.Outcome.String(),
		Plaintext: res.Plaintext,
		Detail:    res.Detail,
	}
	if res.Outcome == attest.OutcomeOK {
		if out.Amount, err = attest.FormatAmount(res.Plaintext, params.Decimals); err != nil {
			return err
		}
	}
	if ctx.Bool(utils.JSONFlag.Name) {
		mustPrintJSON(ctx.App.Writer, out)
	} else {
		fmt.Fprintln(ctx.App.Writer, "Handle: ", out.Handle)
		if out.Amount != "" {
			fmt.Fprintln(ctx.App.Writer, "Amount: ", out.Amount)
		} else {
			fmt.Fprintf(ctx.App.Writer, "Outcome: %s (%s)\n", out.Outcome, out.Detail)
		}
	}
	return res.Err()
}

type outputAddress struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func printAddresses(ctx *cli.Context, labels []string, addrs []derive.Address) {
	if ctx.Bool(utils.JSONFlag.Name) {
		out := make(map[string]outputAddress, len(addrs))
		for i, a := range addrs {
			out[labels[i]] = outputAddress{Address: a.Key.String(), Bump: a.Bump}
		}
		mustPrintJSON(ctx.App.Writer, out)
		return
	}
	for i, a := range addrs {
		fmt.Fprintf(ctx.App.Writer, "%-10s %s (bump %d)\n", labels[i]+":", a.Key, a.Bump)
	}
}

func deriveCampaign(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	d := derive.NewDeriver(cfg.Network.LightningProgram, cfg.Network.FundingProgram)
	funding, vault, err := d.Campaign(utils.MustPublicKey(ctx, creatorFlag), utils.MustPublicKey(ctx, mintFlag))
	if err != nil {
		return err
	}
	printAddresses(ctx, []string{"campaign", "vault"}, []derive.Address{funding, vault})
	return nil
}

func deriveAllowance(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	h, err := handle.FromDecimal(ctx.String(handleFlag.Name))
	if err != nil {
		utils.Fatalf("Invalid --%s: %v", handleFlag.Name, err)
	}
	d := derive.NewDeriver(cfg.Network.LightningProgram, cfg.Network.FundingProgram)
	addr, err := d.Allowance(h, utils.MustPublicKey(ctx, partyFlag))
	if err != nil {
		return err
	}
	printAddresses(ctx, []string{"allowance"}, []derive.Address{addr})
	return nil
}

type outputAirdrop struct {
	Recipient string `json:"recipient"`
	Signature string `json:"signature"`
	Balance   uint64 `json:"balance"`
}

func airdrop(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	var to solana.PublicKey
	if ctx.IsSet(recipientFlag.Name) {
		to = utils.MustPublicKey(ctx, recipientFlag)
	} else {
		to = utils.LoadParty(ctx, utils.KeyFileFlag, "payer").PublicKey()
	}
	ledger := dialLedger(ctx, cfg)
	defer ledger.Close()

	sig, err := ledger.RequestAirdrop(ctx.Context, to, ctx.Uint64(lamportsFlag.Name))
	if err != nil {
		return err
	}
	if err := ledger.WaitForConfirmation(ctx.Context, sig); err != nil {
		return err
	}
	balance, err := ledger.Balance(ctx.Context, to)
	if err != nil {
		return err
	}
	out := outputAirdrop{Recipient: to.String(), Signature: sig.String(), Balance: balance}
	if ctx.Bool(utils.JSONFlag.Name) {
		mustPrintJSON(ctx.App.Writer, out)
	} else {
		fmt.Fprintf(ctx.App.Writer, "Airdropped to %s, balance %d lamports\n", out.Recipient, out.Balance)
	}
	return nil
}
