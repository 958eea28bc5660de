// Command guardctl is the operator tool for the device guard: it hashes the
// access password, computes fingerprints and inspects attempt records.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

var commands = []subcommands.Command{
	&hashPasswordCmd{},
	&fingerprintCmd{},
	&statusCmd{},
	&blockedCmd{},
}
