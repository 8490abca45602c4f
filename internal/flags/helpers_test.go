package flags

import (
	"testing"

	"github.com/urfave/cli/v2"
)

func TestMigrateGlobalFlags(t *testing.T) {
	var seen string
	app := NewApp("", "", "test")
	app.Flags = []cli.Flag{&cli.StringFlag{Name: "rpc", Value: "default"}}
	app.Commands = []*cli.Command{{
		Name:  "sub",
		Flags: []cli.Flag{&cli.StringFlag{Name: "rpc", Value: "default"}},
		Action: func(ctx *cli.Context) error {
			seen = ctx.String("rpc")
			return nil
		},
	}}
	if err := app.Run([]string{"app", "--rpc", "http://node:8899", "sub"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if seen != "http://node:8899" {
		t.Fatalf("global flag not migrated: have %q", seen)
	}
}

func TestEnvName(t *testing.T) {
	if have, want := EnvName("FUNDCTL", "log.json"), "FUNDCTL_LOG_JSON"; have != want {
		t.Fatalf("have %q, want %q", have, want)
	}
	if have, want := EnvName("FUNDCTL", "token-program"), "FUNDCTL_TOKEN_PROGRAM"; have != want {
		t.Fatalf("have %q, want %q", have, want)
	}
}

func TestAutoEnvVars(t *testing.T) {
	var seen string
	rpc := &cli.StringFlag{Name: "rpc", Value: "default"}
	app := NewApp("", "", "test")
	app.Flags = []cli.Flag{rpc}
	AutoEnvVars(app.Flags, "FUNDCTL_TEST")
	app.Action = func(ctx *cli.Context) error {
		seen = ctx.String("rpc")
		return nil
	}
	t.Setenv("FUNDCTL_TEST_RPC", "http://env:8899")
	if err := app.Run([]string{"app"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if seen != "http://env:8899" {
		t.Fatalf("environment not applied: have %q", seen)
	}
}
