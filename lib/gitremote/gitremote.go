// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitremote provides typed access to the git CLI for the
// update source repository. All commands target a specific clone
// directory via the -C flag, which is injected by every Repository
// method — callers never depend on the process working directory.
//
// Pull failures are classified into two kinds so callers can log them
// distinctly: [ErrRemote] (the remote is unreachable) and [ErrLocal]
// (the local clone is corrupt). The supervisor handles both the same
// way — log and skip the tick — but operators reading the log need to
// know which one they are looking at.
package gitremote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrRemote marks a pull failure caused by the remote side: host
// unresolvable, connection refused, authentication rejected.
var ErrRemote = errors.New("remote unreachable")

// ErrLocal marks a pull failure caused by the local clone: missing
// .git directory, corrupt objects, broken refs.
var ErrLocal = errors.New("local repository corrupt")

// Repository represents a git clone at a specific directory. All
// operations target this directory via "git -C <dir>".
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the clone directory.
func (r *Repository) Dir() string {
	return r.dir
}

// EnsureClone returns a Repository at dir, cloning it from url first
// when the directory does not exist. An existing directory is trusted
// to be the clone made by a previous run; a clone failure removes the
// partial directory so the next attempt starts clean.
func EnsureClone(ctx context.Context, url, dir string) (*Repository, error) {
	if _, err := os.Stat(dir); err == nil {
		return NewRepository(dir), nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("inspecting clone directory %s: %w", dir, err)
	}

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", "clone", url, dir)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s into %s: %w (stderr: %s)",
			url, dir, err, strings.TrimSpace(stderr.String()))
	}
	return NewRepository(dir), nil
}

// Pull fast-forwards the clone to the latest remote content. The
// returned error wraps ErrRemote or ErrLocal (testable with errors.Is)
// and includes git's stderr.
func (r *Repository) Pull(ctx context.Context) error {
	_, err := r.run(ctx, "pull", "--ff-only")
	if err == nil {
		return nil
	}
	return fmt.Errorf("pulling latest in %s: %w: %v", r.dir, classify(err.Error()), err)
}

// run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// localFailureMarkers are git stderr fragments indicating the clone
// itself is broken, as opposed to the remote being unreachable.
var localFailureMarkers = []string{
	"not a git repository",
	"corrupt",
	"bad object",
	"object file",
	"broken",
	"index file",
}

// classify maps a git error message to ErrRemote or ErrLocal. Unknown
// failures default to ErrRemote.
func classify(message string) error {
	lower := strings.ToLower(message)
	for _, marker := range localFailureMarkers {
		if strings.Contains(lower, marker) {
			return ErrLocal
		}
	}
	return ErrRemote
}
