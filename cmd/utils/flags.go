// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for incofund commands.
package utils

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/internal/flags"
	"github.com/tos-network/incofund/ledgerclient"
	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags shared by the commands.
var (
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}

	// Network settings
	NetworkFlag = &cli.StringFlag{
		Name:     "network",
		Usage:    "Network preset (localnet, devnet)",
		Value:    params.LocalnetNetwork.Name,
		Category: flags.NetworkCategory,
	}
	RPCEndpointFlag = &cli.StringFlag{
		Name:     "rpc",
		Usage:    "Ledger JSON-RPC endpoint",
		Category: flags.NetworkCategory,
	}
	TokenProgramFlag = &cli.StringFlag{
		Name:     "token-program",
		Usage:    "Confidential token program id",
		Category: flags.NetworkCategory,
	}
	FundingProgramFlag = &cli.StringFlag{
		Name:     "funding-program",
		Usage:    "Funding program id",
		Category: flags.NetworkCategory,
	}
	LightningProgramFlag = &cli.StringFlag{
		Name:     "lightning-program",
		Usage:    "Confidential compute program id owning allowance records",
		Category: flags.NetworkCategory,
	}
	CommitmentFlag = &cli.StringFlag{
		Name:     "commitment",
		Usage:    "Ledger commitment level (processed, confirmed, finalized)",
		Value:    string(ledgerclient.DefaultConfig.Commitment),
		Category: flags.NetworkCategory,
	}

	// Oracle settings
	OracleEndpointFlag = &cli.StringFlag{
		Name:     "oracle",
		Usage:    "Attested decryption service endpoint",
		Category: flags.OracleCategory,
	}
	EncryptEndpointFlag = &cli.StringFlag{
		Name:     "encrypt",
		Usage:    "Encryption service endpoint",
		Category: flags.OracleCategory,
	}
	OracleRateFlag = &cli.Float64Flag{
		Name:     "oracle.rate",
		Usage:    "Maximum decryption requests per second (0 = unlimited)",
		Value:    attest.DefaultConfig.RateLimit,
		Category: flags.OracleCategory,
	}
	RetryAttemptsFlag = &cli.IntFlag{
		Name:     "oracle.attempts",
		Usage:    "Decryption attempts while a fresh handle is not yet indexed",
		Value:    attest.DefaultRetryPolicy.Attempts,
		Category: flags.OracleCategory,
	}

	// Account settings
	KeyFileFlag = &cli.StringFlag{
		Name:     "keyfile",
		Usage:    "Key file of the fee payer and default signer",
		Value:    "keyfile.json",
		Category: flags.AccountCategory,
	}

	// Transaction settings
	ConfirmFlag = &cli.BoolFlag{
		Name:     "confirm",
		Usage:    "Wait for ledger confirmation before reporting an operation committed",
		Value:    true,
		Category: flags.TxCategory,
	}
	JSONFlag = &cli.BoolFlag{
		Name:     "json",
		Usage:    "Output JSON instead of human-readable format",
		Category: flags.MiscCategory,
	}
)

// NetworkFlags are the flags overlaying the network preset.
var NetworkFlags = []cli.Flag{
	NetworkFlag,
	RPCEndpointFlag,
	TokenProgramFlag,
	FundingProgramFlag,
	LightningProgramFlag,
	CommitmentFlag,
	OracleEndpointFlag,
	EncryptEndpointFlag,
	OracleRateFlag,
	RetryAttemptsFlag,
}

// SetNetworkConfig applies network related command line flags to the config.
func SetNetworkConfig(ctx *cli.Context, n *params.Network) {
	if ctx.IsSet(NetworkFlag.Name) {
		preset, err := params.NetworkByName(ctx.String(NetworkFlag.Name))
		if err != nil {
			Fatalf("%v", err)
		}
		*n = *preset
	}
	if ctx.IsSet(RPCEndpointFlag.Name) {
		n.RPCEndpoint = ctx.String(RPCEndpointFlag.Name)
	}
	if ctx.IsSet(OracleEndpointFlag.Name) {
		n.OracleEndpoint = ctx.String(OracleEndpointFlag.Name)
	}
	if ctx.IsSet(EncryptEndpointFlag.Name) {
		n.EncryptEndpoint = ctx.String(EncryptEndpointFlag.Name)
	}
	setProgram(ctx, TokenProgramFlag, &n.TokenProgram)
	setProgram(ctx, FundingProgramFlag, &n.FundingProgram)
	setProgram(ctx, LightningProgramFlag, &n.LightningProgram)
}

func setProgram(ctx *cli.Context, flag *cli.StringFlag, dst *solana.PublicKey) {
	if !ctx.IsSet(flag.Name) {
		return
	}
	pk, err := ParsePublicKey(ctx.String(flag.Name))
	if err != nil {
		Fatalf("Invalid --%s: %v", flag.Name, err)
	}
	*dst = pk
}

// SetClientConfig applies ledger and oracle flags to the client configs.
func SetClientConfig(ctx *cli.Context, lc *ledgerclient.Config, ac *attest.Config, retry *attest.RetryPolicy) {
	if ctx.IsSet(CommitmentFlag.Name) {
		switch c := ledgerclient.Commitment(ctx.String(CommitmentFlag.Name)); c {
		case ledgerclient.CommitmentProcessed, ledgerclient.CommitmentConfirmed, ledgerclient.CommitmentFinalized:
			lc.Commitment = c
		default:
			Fatalf("Unknown commitment level %q", c)
		}
	}
	if ctx.IsSet(OracleRateFlag.Name) {
		ac.RateLimit = ctx.Float64(OracleRateFlag.Name)
	}
	if ctx.IsSet(RetryAttemptsFlag.Name) {
		retry.Attempts = ctx.Int(RetryAttemptsFlag.Name)
	}
}

// ParsePublicKey parses a base58 account address.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(strings.TrimSpace(s))
}

// MustPublicKey parses the address in flag, failing the command when the
// flag is missing or malformed.
func MustPublicKey(ctx *cli.Context, flag cli.Flag) solana.PublicKey {
	name := flag.Names()[0]
	s := ctx.String(name)
	if s == "" {
		Fatalf("Missing --%s", name)
	}
	pk, err := ParsePublicKey(s)
	if err != nil {
		Fatalf("Invalid --%s: %v", name, err)
	}
	return pk
}

// LoadParty reads the key file named by flag.
func LoadParty(ctx *cli.Context, flag cli.Flag, label string) *accounts.Party {
	name := flag.Names()[0]
	file := ctx.String(name)
	if file == "" {
		Fatalf("Missing --%s", name)
	}
	p, err := accounts.LoadKeyFile(file, label)
	if err != nil {
		Fatalf("Failed to load %s key: %v", label, err)
	}
	return p
}

// CheckExclusive verifies that only a single instance of the provided flags was
// set by the user. Each flag might optionally be followed by a string type to
// specialize it further.
func CheckExclusive(ctx *cli.Context, args ...interface{}) {
	set := make([]string, 0, 1)
	for i := 0; i < len(args); i++ {
		flag, ok := args[i].(cli.Flag)
		if !ok {
			panic(fmt.Sprintf("invalid argument, not cli.Flag type: %T", args[i]))
		}
		name := flag.Names()[0]

		if i+1 < len(args) {
			switch option := args[i+1].(type) {
			case string:
				// Extended flag check, make sure value set doesn't conflict with passed in option
				if ctx.String(flag.Names()[0]) == option {
					name += "=" + option
					set = append(set, "--"+name)
				}
				i++
				continue

			case cli.Flag:
			default:
				panic(fmt.Sprintf("invalid argument, not cli.Flag or string extension: %T", args[i+1]))
			}
		}
		if ctx.IsSet(flag.Names()[0]) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		Fatalf("Flags %v can't be used at the same time", strings.Join(set, ", "))
	}
}
