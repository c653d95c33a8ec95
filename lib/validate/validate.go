// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate statically checks that a candidate executable is
// well-formed before it is ever trusted. The check parses the file's
// embedded Go build information — executable format headers plus the
// build metadata the toolchain writes into every binary — without
// executing a single instruction of the candidate.
//
// This is a syntactic check only: a well-formed binary that crashes on
// startup still passes. Semantic validation is deliberately out of
// scope.
package validate

import (
	"debug/buildinfo"
	"fmt"
	"os"
)

// Executable verifies that the file at path is a well-formed Go
// executable. Returns nil when the file parses cleanly. Returns a
// descriptive error when the file is missing, unreadable, empty, not a
// recognized executable format, or carries no Go build information —
// an unreadable candidate is never safe to apply, so every failure
// mode is a validation failure rather than a panic.
//
// The check is pure: the candidate is read, never executed, and no
// state anywhere is modified.
func Executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("candidate %s is not readable: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("candidate %s is not a regular file (mode %s)", path, info.Mode())
	}
	if info.Size() == 0 {
		return fmt.Errorf("candidate %s is empty", path)
	}

	if _, err := buildinfo.ReadFile(path); err != nil {
		return fmt.Errorf("candidate %s is not a well-formed Go executable: %w", path, err)
	}
	return nil
}
