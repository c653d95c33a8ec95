// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs the self-update loop: fetch the latest
// candidate from the remote source, compare fingerprints, validate,
// apply, restart.
//
// The loop is strictly sequential. One tick fully completes (or errors
// out) before the next begins; the only sleep is the fixed inter-check
// delay between ticks. Every error inside a tick is caught and logged
// at the tick boundary — nothing that happens during a tick terminates
// the loop. A successful apply never returns at all: the process image
// is replaced and the new image starts its own loop from scratch.
//
// Failure memory is deliberately asymmetric. A candidate that fails
// validation is recorded in the ledger and skipped on every later tick
// until the remote supplies different content. A fetch error or an
// I/O failure during apply is not recorded: no new content was
// actually judged, so the same candidate is retried on the next tick.
package supervisor
