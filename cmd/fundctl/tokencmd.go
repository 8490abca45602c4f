package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/urfave/cli/v2"
)

var (
	authorityFlag = &cli.StringFlag{
		Name:  "authority",
		Usage: "Mint authority address (default: the signer)",
	}
	freezeAuthorityFlag = &cli.StringFlag{
		Name:  "freeze-authority",
		Usage: "Optional freeze authority address",
	}
	ownerFlag = &cli.StringFlag{
		Name:  "owner",
		Usage: "Owner of the new balance account (default: the signer)",
	}
	readerFlag = &cli.StringFlag{
		Name:  "reader",
		Usage: "Party allowed to decrypt the new balance",
	}
	toFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "Destination balance account",
	}
	sourceReaderFlag = &cli.StringFlag{
		Name:  "source-reader",
		Usage: "Party allowed to decrypt the new source balance (default: its owner)",
	}
	destinationReaderFlag = &cli.StringFlag{
		Name:  "destination-reader",
		Usage: "Party allowed to decrypt the new destination balance (default: its owner)",
	}
)

var (
	commandInitMint = &cli.Command{
		Action: initMint,
		Name:   "init-mint",
		Usage:  "Create a confidential mint",
		Flags:  []cli.Flag{signerFlag, authorityFlag, freezeAuthorityFlag, utils.JSONFlag},
		Description: `
Creates a mint under a fresh address. The mint authority defaults to the
signer.`,
	}
	commandInitAccount = &cli.Command{
		Action: initAccount,
		Name:   "init-account",
		Usage:  "Create a confidential balance account",
		Flags:  []cli.Flag{signerFlag, mintFlag, ownerFlag, utils.JSONFlag},
	}
	commandMint = &cli.Command{
		Action: mint,
		Name:   "mint",
		Usage:  "Mint an encrypted amount into a balance account",
		Flags:  []cli.Flag{signerFlag, mintFlag, accountFlag, amountFlag, readerFlag, utils.JSONFlag},
		Description: `
The signer must be the mint authority. The new balance is readable by
--reader, which defaults to the authority.`,
	}
	commandTransfer = &cli.Command{
		Action: transfer,
		Name:   "transfer",
		Usage:  "Transfer an encrypted amount between balance accounts",
		Flags: []cli.Flag{
			signerFlag, accountFlag, toFlag, amountFlag,
			sourceReaderFlag, destinationReaderFlag, utils.JSONFlag,
		},
		Description: `
Moves --amount from --account, owned by the signer, to --to. Both new
balances are readable by their owners unless other readers are given.`,
	}
)

// optionalPublicKey parses flag if it was given and returns the zero key
// otherwise.
func optionalPublicKey(ctx *cli.Context, flag cli.Flag) solana.PublicKey {
	if !ctx.IsSet(flag.Names()[0]) {
		return solana.PublicKey{}
	}
	return utils.MustPublicKey(ctx, flag)
}

// newAddress generates the keypair of an account created by the command.
func newAddress(label string) *accounts.Party {
	p, err := accounts.GenerateParty(label)
	if err != nil {
		utils.Fatalf("Failed to generate %s address: %v", label, err)
	}
	return p
}

func printCreated(ctx *cli.Context, label string, addr solana.PublicKey) {
	if !ctx.Bool(utils.JSONFlag.Name) {
		fmt.Fprintf(ctx.App.Writer, "%-11s %s\n", label+":", addr)
	}
}

func initMint(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	signer := e.signer(ctx, "authority")
	authority := optionalPublicKey(ctx, authorityFlag)
	if authority.IsZero() {
		authority = signer.PublicKey()
	}
	var freeze *solana.PublicKey
	if ctx.IsSet(freezeAuthorityFlag.Name) {
		pk := utils.MustPublicKey(ctx, freezeAuthorityFlag)
		freeze = &pk
	}
	mint := newAddress("mint")
	op, err := e.orch.InitializeMint(ctx.Context, mint, authority, freeze)
	if err == nil {
		printCreated(ctx, "Mint", mint.PublicKey())
	}
	return printOperation(ctx, op, err)
}

func initAccount(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	owner := optionalPublicKey(ctx, ownerFlag)
	if owner.IsZero() {
		owner = e.signer(ctx, "owner").PublicKey()
	}
	account := newAddress("account")
	op, err := e.orch.InitializeAccount(ctx.Context, account, utils.MustPublicKey(ctx, mintFlag), owner)
	if err == nil {
		printCreated(ctx, "Account", account.PublicKey())
	}
	return printOperation(ctx, op, err)
}

func mint(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	op, err := e.orch.Mint(ctx.Context, orchestrator.MintRequest{
		Authority: e.signer(ctx, "authority"),
		Mint:      utils.MustPublicKey(ctx, mintFlag),
		Account:   utils.MustPublicKey(ctx, accountFlag),
		Amount:    mustAmount(ctx),
		Reader:    optionalPublicKey(ctx, readerFlag),
	})
	return printOperation(ctx, op, err)
}

func transfer(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	op, err := e.orch.Transfer(ctx.Context, orchestrator.TransferRequest{
		Owner:             e.signer(ctx, "owner"),
		Source:            utils.MustPublicKey(ctx, accountFlag),
		Destination:       utils.MustPublicKey(ctx, toFlag),
		Amount:            mustAmount(ctx),
		SourceReader:      optionalPublicKey(ctx, sourceReaderFlag),
		DestinationReader: optionalPublicKey(ctx, destinationReaderFlag),
	})
	return printOperation(ctx, op, err)
}
