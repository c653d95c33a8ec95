// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/updraft-systems/updraft/lib/fingerprint"
)

// ExecFunc replaces the current process image. Matches the signature
// of syscall.Exec. Tests override it to capture the exec call instead
// of actually replacing the test process.
type ExecFunc func(argv0 string, argv []string, env []string) error

// Applier performs the backup-then-replace file swap and triggers
// process replacement. Only the Applier mutates the running file, and
// only after a successful backup.
type Applier struct {
	// RunningPath is the executable currently running.
	RunningPath string

	// CandidatePath is the validated candidate to apply.
	CandidatePath string

	// BackupPath receives a copy of the running file before it is
	// overwritten. Exactly one backup is retained; it exists for
	// manual operator recovery and is never consulted by the agent.
	BackupPath string

	// TransitionPath is where the pre-exec transition state is
	// written for the next process image to inspect.
	TransitionPath string

	// Exec replaces the process image. Nil means syscall.Exec.
	Exec ExecFunc

	Logger *slog.Logger
}

// Apply backs up the running file, copies the candidate over it, and
// exec()s the running path in place with the original arguments and
// environment. On success it does not return: the process image has
// been replaced under the same PID.
//
// A failure during either copy step leaves the running file
// byte-identical to its pre-update content (the backup happens first,
// and a backup failure aborts before the running file is touched). A
// failure of exec() itself clears the transition state and returns the
// error; the current image keeps running.
func (a *Applier) Apply(previous, next fingerprint.Digest) error {
	if _, err := os.Stat(a.RunningPath); err == nil {
		if err := copyPreserving(a.RunningPath, a.BackupPath); err != nil {
			return fmt.Errorf("backing up running file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("inspecting running file before backup: %w", err)
	}

	if err := copyPreserving(a.CandidatePath, a.RunningPath); err != nil {
		return fmt.Errorf("copying candidate over running file: %w", err)
	}

	transition := Transition{
		PreviousFingerprint: previous.String(),
		NewFingerprint:      next.String(),
		RunningPath:         a.RunningPath,
		Timestamp:           time.Now(),
	}
	if err := WriteTransition(a.TransitionPath, transition); err != nil {
		return fmt.Errorf("writing transition state: %w", err)
	}

	a.Logger.Info("restarting with new version",
		"running_path", a.RunningPath,
		"previous", previous.String(),
		"new", next.String(),
	)

	execFunction := a.Exec
	if execFunction == nil {
		execFunction = syscall.Exec
	}

	argv := append([]string{a.RunningPath}, os.Args[1:]...)
	err := execFunction(a.RunningPath, argv, os.Environ())
	if err == nil {
		// Only reachable with an injected ExecFunc; a real exec()
		// never returns on success.
		return nil
	}

	// exec() failed. The process was NOT replaced.
	// The transition state no longer describes reality.
	if clearErr := ClearTransition(a.TransitionPath); clearErr != nil {
		a.Logger.Error("clearing transition state after exec failure",
			"path", a.TransitionPath,
			"error", clearErr,
		)
	}
	return fmt.Errorf("exec %s: %w", a.RunningPath, err)
}

// copyPreserving copies src to dst, overwriting dst, and carries over
// the source's permission bits and modification time. The destination
// is synced before close so a crash immediately after Apply cannot
// leave a half-written file that looks complete.
func copyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer source.Close()

	destination, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := destination.Sync(); err != nil {
		destination.Close()
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	if err := destination.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	// The destination may have pre-existed with different permissions;
	// O_CREATE only applies the mode to newly created files.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode on %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		return fmt.Errorf("setting times on %s: %w", dst, err)
	}
	return nil
}
