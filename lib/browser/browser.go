// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package browser opens URLs in the user's default browser. The login
// flow takes a [Launcher] so tests can substitute a fake that drives
// the callback directly.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Launcher opens a URL in a browser.
type Launcher interface {
	Open(url string) error
}

// Func adapts a plain function to a Launcher, for tests.
type Func func(url string) error

// Open implements Launcher.
func (f Func) Open(url string) error { return f(url) }

// System returns a Launcher backed by the platform's URL opener:
// "open" on macOS, "cmd /C start" on Windows, "xdg-open" elsewhere.
func System() Launcher { return systemLauncher{} }

type systemLauncher struct{}

func (systemLauncher) Open(url string) error {
	var command *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		command = exec.Command("open", url)
	case "windows":
		command = exec.Command("cmd", "/C", "start", "", url)
	default:
		command = exec.Command("xdg-open", url)
	}

	if err := command.Run(); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	return nil
}
