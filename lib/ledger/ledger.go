// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger persists the fingerprint of the most recent failed
// update candidate so a broken candidate is never retried in a loop.
//
// The ledger holds exactly one fingerprint: a new failure replaces the
// old one unconditionally. This single-slot policy is intentional (a
// remote rolled back and forward past an earlier bad version would be
// retried) and documented as a limitation rather than generalized to a
// set.
//
// The record is a single small JSON file written atomically (temporary
// file, fsync, rename, parent directory sync) so a concurrent reader
// from a separate process instance never sees a partial write. Absence
// or corruption of the file is non-fatal and treated as "no known
// failure".
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/updraft-systems/updraft/lib/fingerprint"
)

// record is the on-disk format: one named field holding the
// hex-encoded fingerprint of the last failed candidate.
type record struct {
	Fingerprint string `json:"fingerprint"`
}

// Ledger reads and writes the failed-update record at a fixed path.
// It is the sole reader and writer of that path within one process.
type Ledger struct {
	path   string
	logger *slog.Logger
}

// New returns a Ledger backed by the file at path. The parent
// directory must already exist.
func New(path string, logger *slog.Logger) *Ledger {
	return &Ledger{path: path, logger: logger}
}

// Path returns the ledger's backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the persisted failed fingerprint. The second return value
// is false when no usable record exists: the file is absent, unreadable,
// malformed JSON, or holds an invalid fingerprint. Every such condition
// except plain absence is logged; none is fatal.
func (l *Ledger) Load() (fingerprint.Digest, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Error("reading failed-update ledger", "path", l.path, "error", err)
		}
		return fingerprint.Digest{}, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.logger.Error("malformed failed-update ledger, treating as empty", "path", l.path, "error", err)
		return fingerprint.Digest{}, false
	}
	if rec.Fingerprint == "" {
		return fingerprint.Digest{}, false
	}

	digest, err := fingerprint.Parse(rec.Fingerprint)
	if err != nil {
		l.logger.Error("invalid fingerprint in failed-update ledger, treating as empty", "path", l.path, "error", err)
		return fingerprint.Digest{}, false
	}
	return digest, true
}

// Save overwrites the persisted record with the given fingerprint. The
// write is atomic: a reader never observes a partially written record.
func (l *Ledger) Save(digest fingerprint.Digest) error {
	data, err := json.MarshalIndent(record{Fingerprint: digest.String()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling failed-update record: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := l.path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary ledger file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary ledger file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary ledger file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary ledger file: %w", err)
	}

	if err := os.Rename(temporaryPath, l.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming ledger file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(l.path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	l.logger.Info("recorded failed update", "fingerprint", digest.String(), "path", l.path)
	return nil
}
