// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/updraft-systems/updraft/lib/clock"
	"github.com/updraft-systems/updraft/lib/fingerprint"
	"github.com/updraft-systems/updraft/lib/ledger"
	"github.com/updraft-systems/updraft/lib/notify"
	"github.com/updraft-systems/updraft/lib/validate"
)

// Source refreshes the local candidate content from the remote.
type Source interface {
	Pull(ctx context.Context) error
}

// Applier performs the backup-then-replace swap and process
// replacement. On success it does not return.
type Applier interface {
	Apply(previous, next fingerprint.Digest) error
}

// Supervisor orchestrates the update cycle. It exclusively owns the
// in-memory notion of the current fingerprint; the ledger exclusively
// owns the on-disk failed-fingerprint record.
type Supervisor struct {
	// RunningPath is the executable currently running.
	RunningPath string

	// CandidatePath is where the source deposits the latest candidate.
	CandidatePath string

	// Interval is the fixed delay between update checks.
	Interval time.Duration

	Source   Source
	Ledger   *ledger.Ledger
	Applier  Applier
	Notifier notify.Notifier
	Clock    clock.Clock
	Logger   *slog.Logger

	// Validate statically checks a candidate file. Nil means
	// validate.Executable.
	Validate func(path string) error

	// current is the fingerprint of the running file as of the start
	// of the tick. Zero means unknown (the running file could not be
	// read); an unknown current fingerprint disables comparison for
	// that tick but never stops the loop.
	current fingerprint.Digest
}

// Run executes the update loop until the context is cancelled or the
// process is replaced by a successful update. The first check happens
// immediately; each subsequent check after the fixed interval.
func (s *Supervisor) Run(ctx context.Context) error {
	s.refreshCurrent()
	s.Logger.Info("update supervisor started",
		"running_path", s.RunningPath,
		"candidate_path", s.CandidatePath,
		"interval", s.Interval,
	)

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(s.Interval):
		}
	}
}

// tick performs one full pass of the state machine: fetch, compare,
// validate, apply. All failures are logged here and none propagate;
// the caller always proceeds to the next tick.
func (s *Supervisor) tick(ctx context.Context) {
	// Fetching. A fetch failure means no new content was observed: it
	// is never recorded in the ledger.
	if err := s.Source.Pull(ctx); err != nil {
		s.Logger.Error("fetching candidate", "error", err)
		return
	}

	// Comparing.
	candidate, err := fingerprint.File(s.CandidatePath)
	if err != nil {
		s.Logger.Error("fingerprinting candidate", "path", s.CandidatePath, "error", err)
		s.refreshCurrent()
		return
	}

	if s.current.IsZero() || candidate == s.current {
		s.Logger.Info("no update needed")
		s.refreshCurrent()
		return
	}

	// The known-failed check comes strictly before validation so a
	// candidate already judged bad is not re-validated (and re-announced)
	// on every tick.
	if failed, ok := s.Ledger.Load(); ok && candidate == failed {
		s.Logger.Info("skipping previously failed update", "fingerprint", candidate.String())
		s.refreshCurrent()
		return
	}

	// Validating. The attempt is announced before the verdict.
	s.Logger.Info("update detected",
		"current", s.current.String(),
		"candidate", candidate.String(),
	)
	s.Notifier.Notify(ctx, "Updraft update started",
		fmt.Sprintf("The agent is updating from %s to %s.", s.current, candidate))

	validateFunction := s.Validate
	if validateFunction == nil {
		validateFunction = validate.Executable
	}
	if err := validateFunction(s.CandidatePath); err != nil {
		s.Logger.Error("candidate failed validation, aborting update", "error", err)
		s.Notifier.Notify(ctx, "Updraft update failed",
			fmt.Sprintf("The new version was rejected: %v. The update was aborted.", err))
		if saveErr := s.Ledger.Save(candidate); saveErr != nil {
			s.Logger.Error("recording failed update", "error", saveErr)
		}
		s.refreshCurrent()
		return
	}

	// Applying. On success the process is replaced and Apply never
	// returns. An I/O failure here is an environment problem, not a
	// defect in the candidate: it is not recorded, so the candidate is
	// retried on the next tick.
	if err := s.Applier.Apply(s.current, candidate); err != nil {
		s.Logger.Error("applying update", "error", err)
		s.refreshCurrent()
		return
	}
}

// refreshCurrent re-reads the running file's fingerprint so a manually
// replaced running file is picked up on the next comparison. A read
// failure leaves the fingerprint unknown rather than stopping the loop.
func (s *Supervisor) refreshCurrent() {
	digest, err := fingerprint.File(s.RunningPath)
	if err != nil {
		s.Logger.Error("fingerprinting running file", "path", s.RunningPath, "error", err)
		s.current = fingerprint.Digest{}
		return
	}
	s.current = digest
}
