package debug

import (
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

func newContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = Flags
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cli.NewContext(app, set, nil)
}

func TestSetup(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"--verbosity", "5", "--log.nocolor"},
		{"--log.json", "--log.vmodule", "orchestrator/*=5"},
	} {
		if err := Setup(newContext(t, args...)); err != nil {
			t.Fatalf("setup %v failed: %v", args, err)
		}
	}
}

func TestSetupRejectsBadVmodule(t *testing.T) {
	if err := Setup(newContext(t, "--log.vmodule", "orchestrator=x")); err == nil {
		t.Fatal("expected invalid vmodule to fail")
	}
}
