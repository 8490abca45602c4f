package flags

import (
	"fmt"
	"os"
	"strings"

	"github.com/tos-network/incofund/params"
	"github.com/urfave/cli/v2"
)

// NewApp creates an app with sane defaults.
func NewApp(gitCommit, gitDate, usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = params.VersionWithCommit(gitCommit, gitDate)
	app.Usage = usage
	app.Copyright = "Copyright 2025-2026 The incofund Authors"
	app.Before = func(ctx *cli.Context) error {
		MigrateGlobalFlags(ctx)
		return nil
	}
	return app
}

// MigrateGlobalFlags copies global flag values into subcommand contexts, so
// that in "fundctl --rpc http://node:8899 deposit" the deposit action sees
// the --rpc value. Call it from app.Before.
func MigrateGlobalFlags(ctx *cli.Context) {
	var iterate func(cs []*cli.Command, fn func(*cli.Command))
	iterate = func(cs []*cli.Command, fn func(*cli.Command)) {
		for _, cmd := range cs {
			fn(cmd)
			iterate(cmd.Subcommands, fn)
		}
	}

	iterate(ctx.App.Commands, func(cmd *cli.Command) {
		if cmd.Action == nil {
			return
		}

		action := cmd.Action
		cmd.Action = func(ctx *cli.Context) error {
			doMigrateFlags(ctx)
			return action(ctx)
		}
	})
}

func doMigrateFlags(ctx *cli.Context) {
	var aliases = make(map[string]bool)
	for _, fl := range ctx.Command.Flags {
		for _, alias := range fl.Names()[1:] {
			aliases[alias] = true
		}
	}
	for _, name := range ctx.FlagNames() {
		for _, parent := range ctx.Lineage()[1:] {
			if parent.IsSet(name) {
				// Slice flags accumulate; set them under one name only.
				if _, isAlias := aliases[name]; isAlias {
					continue
				}
				if result := parent.StringSlice(name); len(result) > 0 {
					ctx.Set(name, strings.Join(result, ","))
				} else {
					ctx.Set(name, parent.String(name))
				}
				break
			}
		}
	}
}

// CheckEnvVars iterates over all the environment variables and checks if any
// of them look like a CLI flag but are not consumed by the app.
func CheckEnvVars(ctx *cli.Context, flags []cli.Flag, prefix string) {
	var (
		keyvals  = os.Environ()
		consumed = make(map[string]bool)
	)
	for _, flag := range flags {
		if envFlag, ok := flag.(interface{ GetEnvVars() []string }); ok {
			for _, name := range envFlag.GetEnvVars() {
				consumed[name] = true
			}
		}
	}
	for _, keyval := range keyvals {
		key := strings.SplitN(keyval, "=", 2)[0]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !consumed[key] {
			fmt.Fprintf(os.Stderr, "Unknown %s environment variable: %s\n", prefix, key)
		}
	}
}

// EnvName derives the environment variable of a flag name.
func EnvName(prefix, name string) string {
	return prefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
}

// AutoEnvVars extends the flags with environment variables named after them,
// e.g. --oracle.rate is also read from FUNDCTL_ORACLE_RATE for prefix
// FUNDCTL.
func AutoEnvVars(flags []cli.Flag, prefix string) {
	for _, flag := range flags {
		envvar := EnvName(prefix, flag.Names()[0])
		switch flag := flag.(type) {
		case *cli.StringFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.StringSliceFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.BoolFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.IntFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.Uint64Flag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.Float64Flag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.DurationFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		}
	}
}
