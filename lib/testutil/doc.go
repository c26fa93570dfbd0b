// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for kinic packages.
package testutil
