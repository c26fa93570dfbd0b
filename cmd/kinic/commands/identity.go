// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/humandebri/kinic-cli/cmd/kinic/cli"
	"github.com/humandebri/kinic-cli/lib/config"
	"github.com/humandebri/kinic-cli/lib/identity"
	"github.com/humandebri/kinic-cli/lib/sealed"
	"github.com/humandebri/kinic-cli/lib/secret"
)

// IdentityCommand groups credential backup operations.
func IdentityCommand() *cli.Command {
	return &cli.Command{
		Name:    "identity",
		Summary: "Back up and restore the stored credential",
		Subcommands: []*cli.Command{
			identityExportCommand(),
			identityImportCommand(),
		},
	}
}

func identityExportCommand() *cli.Command {
	var passphraseFile string

	return &cli.Command{
		Name:    "export",
		Summary: "Seal the credential under a passphrase",
		Description: `Encrypt the stored credential under a passphrase and write the
sealed backup to the given file. The backup is a single base64 string;
restore it with 'kinic identity import'.`,
		Usage: "kinic identity export <output-file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the passphrase from this file instead of prompting (\"-\" for stdin)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Export to a file, prompting for a passphrase", Command: "kinic identity export backup.age"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one output file argument")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// The credential carries the session private key; keep it
			// in locked memory while it is in plaintext.
			plaintext, err := secret.ReadFromPath(identityPath(cfg))
			if err != nil {
				return fmt.Errorf("reading credential: %w", err)
			}
			defer plaintext.Close()

			passphrase, err := readPassphrase(passphraseFile, true)
			if err != nil {
				return err
			}
			defer passphrase.Close()

			ciphertext, err := sealed.Seal(plaintext.Bytes(), passphrase)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], []byte(ciphertext+"\n"), 0o600); err != nil {
				return fmt.Errorf("writing backup: %w", err)
			}
			fmt.Printf("Sealed credential written to %s\n", args[0])
			return nil
		},
	}
}

func identityImportCommand() *cli.Command {
	var passphraseFile string

	return &cli.Command{
		Name:    "import",
		Summary: "Restore a sealed credential backup",
		Description: `Decrypt a backup produced by 'kinic identity export' and install it
as the stored credential. The backup is validated — including its
delegation chain — before anything is written.`,
		Usage: "kinic identity import <backup-file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the passphrase from this file instead of prompting (\"-\" for stdin)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one backup file argument")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With("command", "identity/import")

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}

			passphrase, err := readPassphrase(passphraseFile, false)
			if err != nil {
				return err
			}
			defer passphrase.Close()

			plaintext, err := sealed.Open(string(bytes.TrimSpace(raw)), passphrase)
			if err != nil {
				return err
			}
			defer plaintext.Close()

			var stored identity.Stored
			if err := json.Unmarshal(plaintext.Bytes(), &stored); err != nil {
				return fmt.Errorf("backup does not contain a credential: %w", err)
			}
			// Full validation before touching disk: key decode, chain
			// normalization, signature verification.
			id, err := identity.FromStored(&stored, logger)
			if err != nil {
				return fmt.Errorf("backup credential is invalid: %w", err)
			}

			path := identityPath(cfg)
			if err := identity.Save(path, &stored); err != nil {
				return err
			}
			fmt.Printf("Restored credential for %s at %s\n", id.Sender(), path)
			return nil
		},
	}
}

// readPassphrase obtains the sealing passphrase: from the given file
// ("-" for stdin) when set, interactively otherwise. With confirm,
// the interactive prompt asks twice and requires both entries to
// match.
func readPassphrase(path string, confirm bool) (*secret.Buffer, error) {
	if path != "" {
		return secret.ReadFromPath(path)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal; use --passphrase-file")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			secret.Zero(first)
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		if !bytes.Equal(first, second) {
			secret.Zero(first)
			secret.Zero(second)
			return nil, fmt.Errorf("passphrases do not match")
		}
		secret.Zero(second)
	}

	return secret.NewFromBytes(first)
}
