// fundctl is the command line client for confidential token balances and
// funding campaigns.
package main

import (
	"fmt"
	"os"

	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/internal/debug"
	"github.com/tos-network/incofund/internal/flags"
	"github.com/urfave/cli/v2"
)

const (
	clientIdentifier = "fundctl"
	envPrefix        = "FUNDCTL"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app = flags.NewApp(gitCommit, gitDate, "the confidential funding command line interface")

// globalFlags configure the network, clients and fee payer of every command.
var globalFlags = append([]cli.Flag{
	utils.ConfigFileFlag,
	utils.KeyFileFlag,
	utils.ConfirmFlag,
	utils.JSONFlag,
}, utils.NetworkFlags...)

func init() {
	app.Flags = append(append([]cli.Flag{}, globalFlags...), debug.Flags...)
	flags.AutoEnvVars(app.Flags, envPrefix)

	app.Commands = []*cli.Command{
		// See keycmd.go:
		commandKeygen,
		commandAddress,
		// See tokencmd.go:
		commandInitMint,
		commandInitAccount,
		commandMint,
		commandTransfer,
		// See fundcmd.go:
		commandInitCampaign,
		commandDeposit,
		commandWithdraw,
		// See querycmd.go:
		commandInspect,
		commandDecrypt,
		commandDerive,
		commandAirdrop,
		// See scenariocmd.go:
		commandScenario,
		// See config.go:
		commandDumpConfig,
	}

	app.Before = func(ctx *cli.Context) error {
		flags.MigrateGlobalFlags(ctx)
		flags.CheckEnvVars(ctx, app.Flags, envPrefix)
		return debug.Setup(ctx)
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
