// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/updraft-systems/updraft/lib/fingerprint"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testApplier builds an Applier over fresh temp files with the given
// running and candidate content and an exec stub that records its
// arguments. A nil runningContent means no running file exists.
func testApplier(t *testing.T, runningContent, candidateContent []byte) (*Applier, *execRecorder) {
	t.Helper()
	dir := t.TempDir()

	applier := &Applier{
		RunningPath:    filepath.Join(dir, "agent"),
		CandidatePath:  filepath.Join(dir, "candidate"),
		BackupPath:     filepath.Join(dir, "agent.prev"),
		TransitionPath: filepath.Join(dir, "transition.json"),
		Logger:         testLogger(),
	}

	if runningContent != nil {
		if err := os.WriteFile(applier.RunningPath, runningContent, 0755); err != nil {
			t.Fatalf("writing running file: %v", err)
		}
	}
	if candidateContent != nil {
		if err := os.WriteFile(applier.CandidatePath, candidateContent, 0755); err != nil {
			t.Fatalf("writing candidate file: %v", err)
		}
	}

	recorder := &execRecorder{}
	applier.Exec = recorder.exec
	return applier, recorder
}

// execRecorder captures the exec call instead of replacing the test
// process.
type execRecorder struct {
	called bool
	argv0  string
	argv   []string
	err    error
}

func (r *execRecorder) exec(argv0 string, argv []string, env []string) error {
	r.called = true
	r.argv0 = argv0
	r.argv = argv
	return r.err
}

func digestOf(content []byte) fingerprint.Digest {
	return fingerprint.Digest(sha256.Sum256(content))
}

func TestApplySwapsFiles(t *testing.T) {
	oldContent := []byte("old version")
	newContent := []byte("new version")
	applier, recorder := testApplier(t, oldContent, newContent)

	if err := applier.Apply(digestOf(oldContent), digestOf(newContent)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	backup, err := os.ReadFile(applier.BackupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(backup) != string(oldContent) {
		t.Errorf("backup = %q, want pre-update running content %q", backup, oldContent)
	}

	running, err := os.ReadFile(applier.RunningPath)
	if err != nil {
		t.Fatalf("reading running file: %v", err)
	}
	if string(running) != string(newContent) {
		t.Errorf("running file = %q, want candidate content %q", running, newContent)
	}

	if !recorder.called {
		t.Error("exec was not invoked")
	}
	if recorder.argv0 != applier.RunningPath {
		t.Errorf("exec argv0 = %q, want running path %q", recorder.argv0, applier.RunningPath)
	}
	if len(recorder.argv) == 0 || recorder.argv[0] != applier.RunningPath {
		t.Errorf("exec argv = %v, want argv[0] = running path", recorder.argv)
	}
}

func TestApplyWritesTransition(t *testing.T) {
	oldContent := []byte("old")
	newContent := []byte("new")
	applier, _ := testApplier(t, oldContent, newContent)

	previous := digestOf(oldContent)
	next := digestOf(newContent)
	if err := applier.Apply(previous, next); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	transition, err := ReadTransition(applier.TransitionPath)
	if err != nil {
		t.Fatalf("ReadTransition: %v", err)
	}
	if transition.PreviousFingerprint != previous.String() {
		t.Errorf("transition previous = %s, want %s", transition.PreviousFingerprint, previous)
	}
	if transition.NewFingerprint != next.String() {
		t.Errorf("transition new = %s, want %s", transition.NewFingerprint, next)
	}
	if transition.RunningPath != applier.RunningPath {
		t.Errorf("transition running path = %s, want %s", transition.RunningPath, applier.RunningPath)
	}
	if transition.Timestamp.IsZero() {
		t.Error("transition timestamp not set")
	}
}

func TestApplyNoRunningFile(t *testing.T) {
	// First deployment: nothing to back up, candidate becomes the
	// running file.
	newContent := []byte("first version")
	applier, recorder := testApplier(t, nil, newContent)

	if err := applier.Apply(fingerprint.Digest{}, digestOf(newContent)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err := os.Stat(applier.BackupPath); !os.IsNotExist(err) {
		t.Error("backup file should not exist when there was no running file")
	}
	running, err := os.ReadFile(applier.RunningPath)
	if err != nil {
		t.Fatalf("reading running file: %v", err)
	}
	if string(running) != string(newContent) {
		t.Errorf("running file = %q, want %q", running, newContent)
	}
	if !recorder.called {
		t.Error("exec was not invoked")
	}
}

func TestApplyBackupFailureLeavesRunningUntouched(t *testing.T) {
	oldContent := []byte("old version")
	applier, recorder := testApplier(t, oldContent, []byte("new version"))
	// Point the backup at a nonexistent directory so the backup step
	// fails before the running file is touched.
	applier.BackupPath = filepath.Join(applier.BackupPath, "nope", "agent.prev")

	err := applier.Apply(digestOf(oldContent), digestOf([]byte("new version")))
	if err == nil {
		t.Fatal("Apply should fail when the backup cannot be written")
	}

	running, readErr := os.ReadFile(applier.RunningPath)
	if readErr != nil {
		t.Fatalf("reading running file: %v", readErr)
	}
	if string(running) != string(oldContent) {
		t.Errorf("running file = %q, want pre-update content %q", running, oldContent)
	}
	if recorder.called {
		t.Error("exec must not run after a failed backup")
	}
}

func TestApplyCandidateMissingLeavesRunningUntouched(t *testing.T) {
	oldContent := []byte("old version")
	applier, recorder := testApplier(t, oldContent, nil)

	err := applier.Apply(digestOf(oldContent), fingerprint.Digest{})
	if err == nil {
		t.Fatal("Apply should fail when the candidate is missing")
	}

	running, readErr := os.ReadFile(applier.RunningPath)
	if readErr != nil {
		t.Fatalf("reading running file: %v", readErr)
	}
	if string(running) != string(oldContent) {
		t.Errorf("running file = %q, want pre-update content %q", running, oldContent)
	}
	if recorder.called {
		t.Error("exec must not run after a failed copy")
	}
}

func TestApplyExecFailureClearsTransition(t *testing.T) {
	oldContent := []byte("old")
	newContent := []byte("new")
	applier, recorder := testApplier(t, oldContent, newContent)
	recorder.err = errors.New("exec format error")

	err := applier.Apply(digestOf(oldContent), digestOf(newContent))
	if err == nil {
		t.Fatal("Apply should surface an exec failure")
	}

	if _, statErr := os.Stat(applier.TransitionPath); !os.IsNotExist(statErr) {
		t.Error("transition state should be cleared after exec failure")
	}
}

func TestApplyPreservesMode(t *testing.T) {
	oldContent := []byte("old")
	newContent := []byte("new")
	applier, _ := testApplier(t, oldContent, newContent)
	if err := os.Chmod(applier.CandidatePath, 0700); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	if err := applier.Apply(digestOf(oldContent), digestOf(newContent)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	info, err := os.Stat(applier.RunningPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("running file mode = %v, want candidate mode 0700", info.Mode().Perm())
	}
}
