package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
)

type fingerprintCmd struct {
	signals fingerprint.Signals
}

func (*fingerprintCmd) Name() string     { return "fingerprint" }
func (*fingerprintCmd) Synopsis() string { return "compute the device id for a set of signals" }
func (*fingerprintCmd) Usage() string {
	return `guardctl fingerprint -ua <user agent> [-lang <tag>] [-platform <p>] [-screen <WxHxD>] [-tz <zone>] [-canvas <sig>]

  Prints the device id the server derives from the given signals, so an
  operator can look up the record of a known browser.
`
}

func (c *fingerprintCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.signals.UserAgent, "ua", "", "The browser user agent.")
	f.StringVar(&c.signals.Language, "lang", "", "The browser language tag.")
	f.StringVar(&c.signals.Platform, "platform", "", "The platform reported by the browser.")
	f.StringVar(&c.signals.ScreenResolution, "screen", "", "The screen resolution, e.g. 1920x1080x24.")
	f.StringVar(&c.signals.Timezone, "tz", "", "The IANA timezone name.")
	f.StringVar(&c.signals.CanvasSignature, "canvas", "", "The canvas rendering signature.")
}

func (c *fingerprintCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.signals.UserAgent == "" {
		fmt.Fprintln(os.Stderr, "-ua is required")
		return subcommands.ExitUsageError
	}

	fmt.Println(fingerprint.Compute(c.signals))
	return subcommands.ExitSuccess
}
