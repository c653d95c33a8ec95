// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updraft.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalConfig = `
paths:
  running: /opt/updraft/agent
repo:
  url: https://git.example.com/sensors/agent.git
broker:
  host: mosquitto
  username: sensor-agent
  ca_cert: /etc/updraft/ca.crt
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Update.CheckInterval != Duration(time.Minute) {
		t.Errorf("check interval = %s, want 1m default", time.Duration(cfg.Update.CheckInterval))
	}
	if cfg.Broker.Port != 8883 {
		t.Errorf("broker port = %d, want 8883 default", cfg.Broker.Port)
	}
	if cfg.Broker.Topic != "sensors/data" {
		t.Errorf("broker topic = %q, want sensors/data default", cfg.Broker.Topic)
	}
	if cfg.Paths.Backup != "/opt/updraft/agent.prev" {
		t.Errorf("backup path = %q, want running path + .prev", cfg.Paths.Backup)
	}
	if cfg.Repo.Dir != "/var/lib/updraft/repo" {
		t.Errorf("repo dir = %q, want state dir default", cfg.Repo.Dir)
	}
	if cfg.Email != nil {
		t.Error("email should be nil when not configured")
	}
}

func TestLoadDerivedPaths(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.LedgerPath(); got != "/var/lib/updraft/failed-update.json" {
		t.Errorf("LedgerPath = %q", got)
	}
	if got := cfg.TransitionPath(); got != "/var/lib/updraft/transition.json" {
		t.Errorf("TransitionPath = %q", got)
	}
	if got := cfg.CandidatePath(); got != "/var/lib/updraft/repo/agent" {
		t.Errorf("CandidatePath = %q", got)
	}
}

func TestLoadSecretsFromEnvironment(t *testing.T) {
	t.Setenv(EnvBrokerPassword, "broker-secret")
	t.Setenv(EnvSMTPPassword, "smtp-secret")

	cfg, err := Load(writeConfig(t, minimalConfig+`
email:
  from: agent@example.com
  to: ops@example.com
  host: smtp.example.com
  username: agent@example.com
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Password != "broker-secret" {
		t.Errorf("broker password = %q, want value from env", cfg.Broker.Password)
	}
	if cfg.Email == nil || cfg.Email.Password != "smtp-secret" {
		t.Error("email password should come from env")
	}
	if cfg.Email.Port != 587 {
		t.Errorf("email port = %d, want 587 default", cfg.Email.Port)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing repo url",
			content: "broker: {host: h, username: u, ca_cert: c}",
			wantErr: "repo.url",
		},
		{
			name:    "missing broker host",
			content: "repo: {url: u}\nbroker: {username: u, ca_cert: c}",
			wantErr: "broker.host",
		},
		{
			name:    "missing broker username",
			content: "repo: {url: u}\nbroker: {host: h, ca_cert: c}",
			wantErr: "broker.username",
		},
		{
			name:    "missing ca cert",
			content: "repo: {url: u}\nbroker: {host: h, username: u}",
			wantErr: "broker.ca_cert",
		},
		{
			name:    "incomplete email",
			content: "repo: {url: u}\nbroker: {host: h, username: u, ca_cert: c}\nemail: {from: f}",
			wantErr: "email.to",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, testCase.content))
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), testCase.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, testCase.wantErr)
			}
		})
	}
}

func TestLoadCheckIntervalString(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
update:
  check_interval: 5m
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Update.CheckInterval != Duration(5*time.Minute) {
		t.Errorf("check interval = %s, want 5m", time.Duration(cfg.Update.CheckInterval))
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
update:
  check_interval: sixty seconds
`))
	if err == nil {
		t.Error("Load should reject an unparseable duration")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "paths: [not: a: mapping"))
	if err == nil {
		t.Error("Load should fail on malformed YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLocate(t *testing.T) {
	if got, err := Locate("/explicit/path.yaml"); err != nil || got != "/explicit/path.yaml" {
		t.Errorf("Locate(flag) = %q, %v", got, err)
	}

	t.Setenv(EnvConfigPath, "/env/path.yaml")
	if got, err := Locate(""); err != nil || got != "/env/path.yaml" {
		t.Errorf("Locate(env) = %q, %v", got, err)
	}

	t.Setenv(EnvConfigPath, "")
	if _, err := Locate(""); err == nil {
		t.Error("Locate with no flag and no env should fail")
	}
}
