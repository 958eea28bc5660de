package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	pkgauth "github.com/BradenHooton/deviceguard/pkg/auth"
)

type hashPasswordCmd struct {
	password string
	cost     int
}

func (*hashPasswordCmd) Name() string     { return "hash-password" }
func (*hashPasswordCmd) Synopsis() string { return "print a bcrypt hash for ACCESS_PASSWORD_HASH" }
func (*hashPasswordCmd) Usage() string {
	return `guardctl hash-password [-p <password>] [-cost <n>]

  Hashes the access password with bcrypt. Without -p the password is read
  from the first line of standard input, which keeps it out of shell history.
`
}

func (c *hashPasswordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "p", "", "The password to hash. Read from stdin when empty.")
	f.IntVar(&c.cost, "cost", pkgauth.BcryptCost, "The bcrypt cost factor.")
}

func (c *hashPasswordCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	password := c.password
	if password == "" {
		line, err := readLine(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		password = line
	}

	var weak *pkgauth.PasswordStrengthError
	if err := pkgauth.CheckStrength(password); errors.As(err, &weak) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", weak)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	hash, err := pkgauth.HashPasswordWithCost(password, c.cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Println(hash)
	return subcommands.ExitSuccess
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}
	return line, nil
}
