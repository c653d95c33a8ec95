// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint provides SHA256 content hashing for files.
//
// Updraft uses content fingerprints to decide whether the candidate
// fetched from the remote actually differs from the running executable,
// and to identify update attempts in the failed-update ledger. A
// fingerprint is computed fresh for every comparison; it is never
// cached across supervisor ticks.
//
// The API surface:
//
//   - [File] -- streams a file through SHA256, returning a [Digest]
//     with constant memory usage regardless of file size. Any read
//     failure yields an error, never a partial digest.
//   - [Digest.String] -- the canonical hex encoding used in the ledger,
//     transition state files, notifications, and log output.
//   - [Parse] -- parses a hex-encoded digest string back to a [Digest],
//     validating length and encoding.
//
// This package has no dependencies on other Updraft packages.
package fingerprint
