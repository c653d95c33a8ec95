// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects [Real]; tests inject [Fake] with deterministic time
// control.
//
// Every production function that waits — the supervisor's inter-check
// delay, the notifier's retry backoff, the transport's reconnect
// attempts — accepts a Clock instead of calling the time package
// directly.
package clock

import "time"

// Clock abstracts the time operations Updraft uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
