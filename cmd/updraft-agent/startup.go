// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/updraft-systems/updraft/lib/fingerprint"
	"github.com/updraft-systems/updraft/lib/ledger"
	"github.com/updraft-systems/updraft/lib/notify"
	"github.com/updraft-systems/updraft/lib/update"
)

// transitionMaxAge is the maximum age of a transition state file that
// will be acted upon during startup. A transition older than this is
// treated as stale (from an unrelated restart) and silently cleared.
// Normal startup after exec() completes in well under a minute.
const transitionMaxAge = 5 * time.Minute

// reportTransition reads the transition state file written by the
// previous process image just before exec() and reports the outcome.
//
// When a recent transition exists, the running file's fingerprint
// decides what happened:
//   - It matches the transition's new fingerprint: the update
//     succeeded and this process is the new version. Notify success.
//   - It matches the previous fingerprint: an operator restored the
//     backup after a bad update. Notify failure and record the new
//     fingerprint in the ledger so that version is not retried.
//   - It matches neither: the running file was replaced by other
//     means; the transition no longer applies.
//
// The transition file is cleared in every case. When it does not exist
// or is stale, this is a normal startup and nothing is reported.
func reportTransition(
	ctx context.Context,
	transitionPath string,
	runningPath string,
	failedLedger *ledger.Ledger,
	notifier notify.Notifier,
	logger *slog.Logger,
) {
	transition, found, err := update.CheckTransition(transitionPath, transitionMaxAge)
	if err != nil {
		logger.Error("reading transition state", "path", transitionPath, "error", err)
		return
	}
	if !found {
		return
	}

	current, err := fingerprint.File(runningPath)
	if err != nil {
		logger.Error("fingerprinting running file for transition check",
			"path", runningPath,
			"error", err,
		)
		clearTransition(transitionPath, logger)
		return
	}

	switch current.String() {
	case transition.NewFingerprint:
		logger.Info("self-update succeeded",
			"previous", transition.PreviousFingerprint,
			"new", transition.NewFingerprint,
		)
		notifier.Notify(ctx, "Updraft update succeeded",
			fmt.Sprintf("The agent restarted on version %s.", transition.NewFingerprint))

	case transition.PreviousFingerprint:
		logger.Error("self-update was rolled back, old version running",
			"attempted", transition.NewFingerprint,
			"current", transition.PreviousFingerprint,
		)
		notifier.Notify(ctx, "Updraft update failed",
			fmt.Sprintf("The agent is back on version %s after attempting %s.",
				transition.PreviousFingerprint, transition.NewFingerprint))
		if failed, parseErr := fingerprint.Parse(transition.NewFingerprint); parseErr == nil {
			if saveErr := failedLedger.Save(failed); saveErr != nil {
				logger.Error("recording rolled-back update", "error", saveErr)
			}
		}

	default:
		logger.Info("clearing stale transition state (running file matches neither side)",
			"current", current.String(),
			"transition_previous", transition.PreviousFingerprint,
			"transition_new", transition.NewFingerprint,
		)
	}

	clearTransition(transitionPath, logger)
}

func clearTransition(path string, logger *slog.Logger) {
	if err := update.ClearTransition(path); err != nil {
		logger.Error("clearing transition state", "path", path, "error", err)
	}
}
