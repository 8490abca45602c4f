package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/cmd/utils"
	"github.com/tos-network/incofund/internal/scenario"
	"github.com/tos-network/incofund/ledgerclient"
	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

var commandDumpConfig = &cli.Command{
	Action:    dumpConfig,
	Name:      "dumpconfig",
	Usage:     "Export configuration values in a TOML format",
	ArgsUsage: "<dumpfile (optional)>",
	Description: `
The dumpconfig command shows configuration values after applying the network
preset, the --config file and the command line flags.`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// fundConfig is the complete client configuration.
type fundConfig struct {
	Network  params.Network
	Ledger   ledgerclient.Config
	Oracle   attest.Config
	Retry    attest.RetryPolicy
	Scenario scenarioConfig
}

// scenarioConfig holds the amounts of the scenario command, in base units.
type scenarioConfig struct {
	MintAmount uint64
	Deposits   []uint64
	Withdraw   uint64
	Parallel   int
}

func defaultConfig() *fundConfig {
	return &fundConfig{
		Network: *params.LocalnetNetwork,
		Ledger:  ledgerclient.DefaultConfig,
		Oracle:  attest.DefaultConfig,
		Retry:   attest.DefaultRetryPolicy,
		Scenario: scenarioConfig{
			MintAmount: scenario.DefaultConfig.MintAmount,
			Deposits:   append([]uint64(nil), scenario.DefaultConfig.Deposits...),
			Withdraw:   scenario.DefaultConfig.Withdraw,
			Parallel:   scenario.DefaultConfig.Parallel,
		},
	}
}

func (c *scenarioConfig) runnerConfig(retry attest.RetryPolicy) scenario.Config {
	return scenario.Config{
		MintAmount: c.MintAmount,
		Deposits:   c.Deposits,
		Withdraw:   c.Withdraw,
		Retry:      retry,
		Parallel:   c.Parallel,
	}
}

func loadConfig(file string, cfg *fundConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration: defaults, then the config file, then
// the command line flags.
func makeConfig(ctx *cli.Context) *fundConfig {
	cfg := defaultConfig()
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	utils.SetNetworkConfig(ctx, &cfg.Network)
	utils.SetClientConfig(ctx, &cfg.Ledger, &cfg.Oracle, &cfg.Retry)

	// The network names the oracle; the client section only tunes it.
	cfg.Oracle.Endpoint = cfg.Network.OracleEndpoint
	return cfg
}

// encryptConfig returns the client configuration of the encryption service.
func (c *fundConfig) encryptConfig() attest.Config {
	cfg := c.Oracle
	cfg.Endpoint = c.Network.EncryptEndpoint
	return cfg
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}
