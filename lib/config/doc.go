// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the CLI.
//
// Configuration is loaded from a single YAML file specified by the
// KINIC_CONFIG environment variable, falling back to
// ~/.config/kinic/config.yaml. A missing file is not an error — every
// field has a default, and most installations never write a config
// file at all.
//
// Key exports:
//   - Config: provider, login, and identity settings.
//   - Default: the built-in defaults.
//   - Load / LoadFile: file loading with validation.
package config
