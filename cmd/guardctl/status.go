package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/models"
)

type statusCmd struct {
	device string
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the attempt record of a device" }
func (*statusCmd) Usage() string {
	return `guardctl status -device <id>

  Reads the attempt record of a device from the configured store.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.device, "device", "", "The device id, as printed by guardctl fingerprint.")
}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id := strings.ToLower(strings.TrimSpace(c.device))
	if !fingerprint.IsValid(id) {
		fmt.Fprintln(os.Stderr, "-device must be a 32 character hex device id")
		return subcommands.ExitUsageError
	}

	store, closeStore, err := openReader(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	rec, err := store.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		fmt.Printf("%s: no attempts recorded\n", id)
		return subcommands.ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "device\t%s\n", rec.DeviceID)
	fmt.Fprintf(w, "state\t%s\n", describe(rec, now))
	fmt.Fprintf(w, "attempts\t%d\n", rec.Attempts)
	fmt.Fprintf(w, "last attempt\t%s\n", rec.LastAttempt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "first seen\t%s\n", rec.CreatedAt.Local().Format(time.RFC3339))
	w.Flush()
	return subcommands.ExitSuccess
}

type blockedCmd struct{}

func (*blockedCmd) Name() string     { return "blocked" }
func (*blockedCmd) Synopsis() string { return "list devices that are currently blocked" }
func (*blockedCmd) Usage() string {
	return `guardctl blocked

  Lists every device whose block is still active, soonest expiry first.
`
}

func (*blockedCmd) SetFlags(*flag.FlagSet) {}

func (*blockedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeStore, err := openReader(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	now := time.Now()
	blocked, err := store.ListBlocked(ctx, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if len(blocked) == 0 {
		fmt.Println("no devices are blocked")
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tATTEMPTS\tBLOCKED UNTIL\tREMAINING")
	for _, rec := range blocked {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			rec.DeviceID,
			rec.Attempts,
			rec.BlockedUntil.Local().Format(time.RFC3339),
			rec.BlockedUntil.Sub(now).Round(time.Second))
	}
	w.Flush()
	return subcommands.ExitSuccess
}
