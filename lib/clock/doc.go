// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects [Real]; tests inject [Fake] and drive time with Advance.
//
// The login flow uses After for its wall-clock callback timeout, and
// the identity store uses Now for delegation expiry checks. Both take
// a Clock so tests never depend on real time.
package clock
