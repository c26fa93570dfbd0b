// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/humandebri/kinic-cli/cmd/kinic/cli"
	"github.com/humandebri/kinic-cli/lib/config"
)

// LogoutCommand removes the stored credential.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Remove the stored credential",
		Description: `Delete the credential file. The delegation itself remains valid
until its expiration; logout only removes the local copy.`,
		Usage: "kinic logout",
		Run: func(args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := identityPath(cfg)

			if err := os.Remove(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Println("No credential stored; nothing to do.")
					return nil
				}
				return fmt.Errorf("removing %s: %w", path, err)
			}
			fmt.Printf("Removed %s\n", path)
			return nil
		},
	}
}
