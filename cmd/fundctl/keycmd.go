package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/urfave/cli/v2"
)

const defaultKeyfileName = "keyfile.json"

type outputKey struct {
	Name       string `json:"name,omitempty"`
	ID         string `json:"id"`
	Address    string `json:"address"`
	Derivation string `json:"derivation,omitempty"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

var (
	nameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "Label stored in the key file",
	}
	mnemonicGenerateFlag = &cli.BoolFlag{
		Name:  "mnemonic-generate",
		Usage: "Generate a BIP39 mnemonic and derive the key from it",
	}
	mnemonicFlag = &cli.StringFlag{
		Name:  "mnemonic",
		Usage: "Derive keys from an existing BIP39 mnemonic",
	}
	mnemonicPassphraseFlag = &cli.StringFlag{
		Name:  "mnemonic-passphrase",
		Usage: "Optional BIP39 passphrase for mnemonic-to-seed",
	}
	mnemonicBitsFlag = &cli.IntFlag{
		Name:  "mnemonic-bits",
		Usage: "Entropy bits for generated mnemonic (128,160,192,224,256)",
		Value: accounts.DefaultMnemonicBits,
	}
	derivationFlag = &cli.StringFlag{
		Name:  "derivation",
		Usage: "Derivation label used with the mnemonic flow",
		Value: accounts.DefaultDerivation,
	}
)

var commandKeygen = &cli.Command{
	Name:      "keygen",
	Usage:     "Generate a new key file",
	ArgsUsage: "[ <keyfile> ]",
	Description: `
Generate a new key file holding an ed25519 keypair.

The key is random unless --mnemonic or --mnemonic-generate is given, in which
case it is derived from the mnemonic and the --derivation label. Every label
yields an independent key.`,
	Flags: []cli.Flag{
		nameFlag,
		mnemonicGenerateFlag,
		mnemonicFlag,
		mnemonicPassphraseFlag,
		mnemonicBitsFlag,
		derivationFlag,
		utils.JSONFlag,
	},
	Action: func(ctx *cli.Context) error {
		// Check if keyfile path given and make sure it doesn't already exist.
		keyfilepath := ctx.Args().First()
		if keyfilepath == "" {
			keyfilepath = defaultKeyfileName
		}
		if _, err := os.Stat(keyfilepath); err == nil {
			utils.Fatalf("Keyfile already exists at %s.", keyfilepath)
		} else if !os.IsNotExist(err) {
			utils.Fatalf("Error checking if keyfile exists: %v", err)
		}
		utils.CheckExclusive(ctx, mnemonicFlag, mnemonicGenerateFlag)

		var (
			party    *accounts.Party
			err      error
			out      outputKey
			name     = ctx.String(nameFlag.Name)
			mnemonic = strings.TrimSpace(ctx.String(mnemonicFlag.Name))
		)
		if ctx.Bool(mnemonicGenerateFlag.Name) {
			mnemonic, err = accounts.GenerateMnemonic(ctx.Int(mnemonicBitsFlag.Name))
			if err != nil {
				utils.Fatalf("Failed to generate mnemonic: %v", err)
			}
			out.Mnemonic = mnemonic
		}
		if mnemonic != "" {
			out.Derivation = ctx.String(derivationFlag.Name)
			party, err = accounts.PartyFromMnemonic(name, mnemonic, ctx.String(mnemonicPassphraseFlag.Name), out.Derivation)
		} else {
			party, err = accounts.GenerateParty(name)
		}
		if err != nil {
			utils.Fatalf("Failed to create key: %v", err)
		}
		if err := accounts.StoreKeyFile(keyfilepath, party); err != nil {
			utils.Fatalf("Failed to write keyfile to %s: %v", keyfilepath, err)
		}

		out.Name = party.Name
		out.ID = party.Id.String()
		out.Address = party.PublicKey().String()
		if ctx.Bool(utils.JSONFlag.Name) {
			mustPrintJSON(ctx.App.Writer, out)
		} else {
			fmt.Fprintln(ctx.App.Writer, "Address:", out.Address)
			if out.Mnemonic != "" {
				fmt.Fprintln(ctx.App.Writer, "Mnemonic:", out.Mnemonic)
				fmt.Fprintln(ctx.App.Writer, "Derivation:", out.Derivation)
			}
		}
		return nil
	},
}

var commandAddress = &cli.Command{
	Name:      "address",
	Usage:     "Print the address of a key file",
	ArgsUsage: "<keyfile>",
	Flags:     []cli.Flag{utils.JSONFlag},
	Action: func(ctx *cli.Context) error {
		keyfilepath := ctx.Args().First()
		if keyfilepath == "" {
			utils.Fatalf("Missing key file argument")
		}
		party, err := accounts.LoadKeyFile(keyfilepath, "")
		if err != nil {
			utils.Fatalf("Failed to read the keyfile at '%s': %v", keyfilepath, err)
		}
		out := outputKey{Name: party.Name, ID: party.Id.String(), Address: party.PublicKey().String()}
		if ctx.Bool(utils.JSONFlag.Name) {
			mustPrintJSON(ctx.App.Writer, out)
		} else {
			fmt.Fprintln(ctx.App.Writer, "Address:", out.Address)
			if out.Name != "" {
				fmt.Fprintln(ctx.App.Writer, "Name:   ", out.Name)
			}
		}
		return nil
	},
}
