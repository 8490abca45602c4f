package main

import (
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/core/orchestrator"
	"github.com/urfave/cli/v2"
)

var (
	creatorFlag = &cli.StringFlag{
		Name:  "creator",
		Usage: "Campaign creator address",
	}
	fundingFlag = &cli.StringFlag{
		Name:  "funding",
		Usage: "Campaign account (default: the signer's campaign)",
	}
	vaultReaderFlag = &cli.StringFlag{
		Name:  "vault-reader",
		Usage: "Party allowed to decrypt the new vault balance (default: the creator)",
	}
)

var (
	commandInitCampaign = &cli.Command{
		Action: initCampaign,
		Name:   "init-campaign",
		Usage:  "Open the signer's funding campaign for a mint",
		Flags:  []cli.Flag{signerFlag, mintFlag, utils.JSONFlag},
		Description: `
Creates the campaign account and its vault at the addresses derived from the
creator and the mint. A creator has one campaign.`,
	}
	commandDeposit = &cli.Command{
		Action: deposit,
		Name:   "deposit",
		Usage:  "Deposit an encrypted amount into a campaign vault",
		Flags: []cli.Flag{
			signerFlag, accountFlag, creatorFlag, amountFlag,
			sourceReaderFlag, vaultReaderFlag, utils.JSONFlag,
		},
		Description: `
Moves --amount from --account, owned by the signer, into the vault of the
campaign opened by --creator.`,
	}
	commandWithdraw = &cli.Command{
		Action: withdraw,
		Name:   "withdraw",
		Usage:  "Withdraw an encrypted amount from the signer's campaign vault",
		Flags:  []cli.Flag{signerFlag, toFlag, amountFlag, fundingFlag, utils.JSONFlag},
		Description: `
Moves --amount from the vault to --to. Only the campaign creator may withdraw;
the new vault balance and campaign total are readable by the creator.`,
	}
)

func initCampaign(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	op, funding, vault, err := e.orch.InitializeCampaign(ctx.Context, e.signer(ctx, "creator"), utils.MustPublicKey(ctx, mintFlag))
	if err == nil {
		printCreated(ctx, "Campaign", funding)
		printCreated(ctx, "Vault", vault)
	}
	return printOperation(ctx, op, err)
}

func deposit(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	op, err := e.orch.Deposit(ctx.Context, orchestrator.DepositRequest{
		Depositor:    e.signer(ctx, "depositor"),
		Source:       utils.MustPublicKey(ctx, accountFlag),
		Creator:      utils.MustPublicKey(ctx, creatorFlag),
		Amount:       mustAmount(ctx),
		SourceReader: optionalPublicKey(ctx, sourceReaderFlag),
		VaultReader:  optionalPublicKey(ctx, vaultReaderFlag),
	})
	return printOperation(ctx, op, err)
}

func withdraw(ctx *cli.Context) error {
	e := makeEnv(ctx)
	defer e.close()

	op, err := e.orch.Withdraw(ctx.Context, orchestrator.WithdrawRequest{
		Creator:     e.signer(ctx, "creator"),
		Destination: utils.MustPublicKey(ctx, toFlag),
		Amount:      mustAmount(ctx),
		Funding:     optionalPublicKey(ctx, fundingFlag),
	})
	return printOperation(ctx, op, err)
}
