// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the kinic CLI command tree.
package commands

import (
	"fmt"

	"github.com/humandebri/kinic-cli/cmd/kinic/cli"
	"github.com/humandebri/kinic-cli/lib/version"
)

// Root builds and returns the complete kinic CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "kinic",
		Description: `Kinic: command-line client for Kinic.

Authenticate through the browser with your identity provider and keep
the resulting time-boxed credential on this machine.`,
		Subcommands: []*cli.Command{
			LoginCommand(),
			WhoAmICommand(),
			LogoutCommand(),
			IdentityCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("kinic %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Authenticate via the browser (saves the credential locally)",
				Command:     "kinic login",
			},
			{
				Description: "Show who you are logged in as",
				Command:     "kinic whoami",
			},
			{
				Description: "Back up the credential under a passphrase",
				Command:     "kinic identity export backup.age",
			},
			{
				Description: "Restore a credential on another machine",
				Command:     "kinic identity import backup.age",
			},
		},
	}
}
