// Package debug configures logging and metrics collection for the commands.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tos-network/incofund/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	vmoduleFlag = &cli.StringFlag{
		Name:     "log.vmodule",
		Usage:    "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. orchestrator/*=5,attest=4)",
		Value:    "",
		Category: flags.LoggingCategory,
	}
	logjsonFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON",
		Category: flags.LoggingCategory,
	}
	nocolorFlag = &cli.BoolFlag{
		Name:     "log.nocolor",
		Usage:    "Disable colored terminal output",
		Category: flags.LoggingCategory,
	}
	metricsFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening on the given address (e.g. 127.0.0.1:6060)",
		Category: flags.MetricsCategory,
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	verbosityFlag,
	vmoduleFlag,
	logjsonFlag,
	nocolorFlag,
	metricsFlag,
	metricsAddrFlag,
}

var glogger *log.GlogHandler

func init() {
	glogger = log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, false))
	glogger.Verbosity(log.LvlInfo)
	log.SetDefault(log.NewLogger(glogger))
}

// Setup initializes logging and metrics based on the CLI flags. It should be
// called as early as possible in the program.
func Setup(ctx *cli.Context) error {
	var (
		output   io.Writer = os.Stderr
		useColor           = !ctx.Bool(nocolorFlag.Name) && isTerminal(os.Stderr)
	)
	if useColor {
		output = colorable.NewColorableStderr()
	}
	var handler slog.Handler
	if ctx.Bool(logjsonFlag.Name) {
		handler = log.JSONHandler(output)
	} else {
		handler = log.NewTerminalHandler(output, useColor)
	}
	glogger = log.NewGlogHandler(handler)
	glogger.Verbosity(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	if err := glogger.Vmodule(ctx.String(vmoduleFlag.Name)); err != nil {
		return fmt.Errorf("invalid --%s: %w", vmoduleFlag.Name, err)
	}
	log.SetDefault(log.NewLogger(glogger))

	// Meters are created at package init and only go live when --metrics
	// is on the command line itself.
	if ctx.Bool(metricsFlag.Name) && !metrics.Enabled {
		log.Warn("Metrics requested outside the command line, collection stays disabled")
	}
	if addr := ctx.String(metricsAddrFlag.Name); addr != "" && metrics.Enabled {
		log.Info("Enabling stand-alone metrics HTTP endpoint", "addr", addr)
		exp.Setup(addr)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
