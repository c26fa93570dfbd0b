// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/humandebri/kinic-cli/cmd/kinic/cli"
	"github.com/humandebri/kinic-cli/lib/browser"
	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/config"
	"github.com/humandebri/kinic-cli/lib/identity"
	"github.com/humandebri/kinic-cli/lib/login"
)

// LoginCommand authenticates through the browser and stores the
// resulting delegated credential.
func LoginCommand() *cli.Command {
	var (
		port        int
		providerURL string
		timeout     time.Duration
	)

	return &cli.Command{
		Name:    "login",
		Summary: "Authenticate via the browser",
		Description: `Open the identity provider in the browser and wait for it to post
the delegated credential back to a local callback. The credential is
stored on disk and used by later commands until it expires.`,
		Usage: "kinic login [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flagSet.IntVar(&port, "port", 0, "callback port (overrides config)")
			flagSet.StringVar(&providerURL, "provider", "", "identity provider authorize URL (overrides config)")
			flagSet.DurationVar(&timeout, "timeout", 0, "how long to wait for the browser (overrides config)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Log in with the configured provider", Command: "kinic login"},
			{Description: "Wait longer on a slow connection", Command: "kinic login --timeout 10m"},
		},
		Run: func(args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Login.CallbackPort = port
			}
			if providerURL != "" {
				cfg.Provider.URL = providerURL
			}
			if timeout != 0 {
				cfg.Login.Timeout = config.Duration(timeout)
			}
			return runLogin(cfg)
		},
	}
}

func runLogin(cfg *config.Config) error {
	logger := cli.NewCommandLogger().With("command", "login")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flow := login.New(login.Config{
		ProviderURL:      cfg.Provider.URL,
		ProviderOrigin:   cfg.Provider.Origin,
		DerivationOrigin: cfg.Provider.DerivationOrigin,
		CallbackPort:     cfg.Login.CallbackPort,
		SessionTTL:       cfg.Login.SessionTTL.Std(),
		Timeout:          cfg.Login.Timeout.Std(),
		Clock:            clock.Real(),
		Logger:           logger,
		Browser:          browser.System(),
	})

	stored, id, err := flow.Run(ctx)
	if err != nil {
		return err
	}

	path := identityPath(cfg)
	if err := identity.Save(path, stored); err != nil {
		return err
	}

	expires := time.Unix(0, int64(id.ExpirationNs()))
	fmt.Printf("Logged in as %s\n", id.Sender())
	fmt.Printf("Credential stored at %s (expires %s)\n", path, expires.Format(time.RFC3339))
	return nil
}

// identityPath resolves the identity file location: the config
// override when set, the standard location otherwise.
func identityPath(cfg *config.Config) string {
	if cfg.Identity.Path != "" {
		return cfg.Identity.Path
	}
	return identity.DefaultPath()
}
