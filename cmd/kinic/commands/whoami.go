// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/humandebri/kinic-cli/cmd/kinic/cli"
	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/config"
	"github.com/humandebri/kinic-cli/lib/identity"
)

// WhoAmICommand prints the authenticated principal, or exits 1 when
// no usable credential is stored.
func WhoAmICommand() *cli.Command {
	return &cli.Command{
		Name:    "whoami",
		Summary: "Print the current principal",
		Description: `Print the principal of the stored credential and when it expires.
Exits 1 when there is no credential or it has expired.`,
		Usage: "kinic whoami",
		Run: func(args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With("command", "whoami")
			clk := clock.Real()

			id, err := identity.Load(identityPath(cfg), clk, logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return &cli.ExitError{Code: 1}
			}

			expires := time.Unix(0, int64(id.ExpirationNs()))
			fmt.Printf("%s\n", id.Sender())
			fmt.Printf("expires %s (%s from now)\n",
				expires.Format(time.RFC3339), remainingLifetime(clk, expires))
			return nil
		},
	}
}

// remainingLifetime reports how long a credential stays valid from the
// clock's current time, rounded to the minute for display.
func remainingLifetime(clk clock.Clock, expires time.Time) time.Duration {
	return expires.Sub(clk.Now()).Round(time.Minute)
}
