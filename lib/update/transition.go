// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Transition records the context of a process replacement. Written by
// the old process image immediately before exec(); read by whichever
// process image starts next to determine the outcome.
type Transition struct {
	// PreviousFingerprint is the hex fingerprint of the running file
	// before the update. When the starting process finds its running
	// file matches this value, the update was rolled back (an operator
	// restored the backup after a bad version).
	PreviousFingerprint string `json:"previous_fingerprint"`

	// NewFingerprint is the hex fingerprint of the candidate being
	// applied. When the starting process finds its running file
	// matches this value, the update succeeded.
	NewFingerprint string `json:"new_fingerprint"`

	// RunningPath is the path that was overwritten and re-executed.
	RunningPath string `json:"running_path"`

	// Timestamp is when the transition was initiated. Used by
	// CheckTransition to discard stale state files left behind by
	// unrelated restarts.
	Timestamp time.Time `json:"timestamp"`
}

// WriteTransition atomically writes a transition state file: temporary
// file in the same directory, fsync, rename into place, parent
// directory sync. Readers never see a partial write. The file is
// created with mode 0600; the parent directory must already exist.
func WriteTransition(path string, transition Transition) error {
	data, err := json.MarshalIndent(transition, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling transition state: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary transition file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary transition file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary transition file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary transition file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming transition file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// ReadTransition reads and parses a transition state file. When the
// file does not exist, the returned error wraps os.ErrNotExist
// (testable with errors.Is).
func ReadTransition(path string) (Transition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transition{}, err
	}

	var transition Transition
	if err := json.Unmarshal(data, &transition); err != nil {
		return Transition{}, fmt.Errorf("parsing transition file %s: %w", path, err)
	}
	return transition, nil
}

// CheckTransition reads a transition state file and verifies it was
// written recently enough to be relevant. Returns the transition and
// true when the file exists and its Timestamp is within maxAge of now.
// Returns a zero Transition and false when the file does not exist or
// is older than maxAge.
//
// Any other error (permission denied, corrupt JSON) is returned as-is
// so the caller can distinguish "no transition" from "transition
// exists but unreadable."
func CheckTransition(path string, maxAge time.Duration) (Transition, bool, error) {
	transition, err := ReadTransition(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Transition{}, false, nil
		}
		return Transition{}, false, err
	}

	if time.Since(transition.Timestamp) > maxAge {
		return Transition{}, false, nil
	}
	return transition, true, nil
}

// ClearTransition removes a transition state file. Idempotent: returns
// nil when the file does not exist.
func ClearTransition(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing transition file: %w", err)
	}
	return nil
}
