// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package update applies a validated candidate over the running
// executable and replaces the process image in place.
//
// The [Applier] performs a strictly ordered two-step copy — back up the
// running file, then overwrite it with the candidate — so that a
// failure at either step leaves the running file byte-identical to its
// pre-update content. After the copy it writes a [Transition] state
// file and exec()s the running path, preserving the process identity:
// no child process is spawned and the update is not visible as a new
// PID.
//
// The transition state file records the fingerprints on either side of
// the exec(). The next process image reads it on startup to determine
// whether the transition it is waking up from succeeded, was rolled
// back, or belongs to an unrelated restart. It is written atomically
// (temporary file, fsync, rename) so readers never see a partial
// state.
package update
