// Copyright 2026 The Pubwatch Authors
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
	path := filepath.Join(t.TempDir(), "pubwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
homeserver: https://matrix.example.org
account:
  username: "@watcher:example.org"
poll:
  base_url: https://archive.example.org/pub
sources:
  - name: releases
    path: firefox/releases
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !*cfg.IgnoreOwnMessages {
		t.Error("IgnoreOwnMessages should default to true")
	}
	if !*cfg.Autojoin {
		t.Error("Autojoin should default to true")
	}
	if cfg.Poll.Interval != 30*time.Minute {
		t.Errorf("Poll.Interval = %s, want 30m", cfg.Poll.Interval)
	}
	if cfg.Account.DeviceName != "pubwatch" {
		t.Errorf("DeviceName = %q, want pubwatch", cfg.Account.DeviceName)
	}
	if cfg.Session.Backend != BackendEphemeral {
		t.Errorf("Session.Backend = %q, want ephemeral", cfg.Session.Backend)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
homeserver: https://matrix.example.org
account:
  username: "@watcher:example.org"
  password: hunter2
  device_name: watcher-agent
ignore_own_messages: false
autojoin: false
allowed_users:
  - "@ops:example.org"
poll:
  interval: 5m
  base_url: https://archive.example.org/pub
sources:
  - name: releases
    path: firefox/releases
  - name: candidates
    path: firefox/candidates
    filter: candidates
    recurse: true
session:
  backend: file
  dir: /var/lib/pubwatch
  passphrase: sekrit
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *cfg.IgnoreOwnMessages {
		t.Error("IgnoreOwnMessages should be false")
	}
	if *cfg.Autojoin {
		t.Error("Autojoin should be false")
	}
	if cfg.Poll.Interval != 5*time.Minute {
		t.Errorf("Poll.Interval = %s, want 5m", cfg.Poll.Interval)
	}
	if len(cfg.Sources) != 2 || !cfg.Sources[1].Recurse || cfg.Sources[1].Filter != "candidates" {
		t.Errorf("Sources = %+v", cfg.Sources)
	}
	if cfg.Session.Backend != BackendFile || cfg.Session.Dir != "/var/lib/pubwatch" {
		t.Errorf("Session = %+v", cfg.Session)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing homeserver",
			content: `
account:
  username: "@w:example.org"
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
`,
			wantErr: "homeserver is required",
		},
		{
			name: "missing username",
			content: `
homeserver: https://matrix.example.org
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
`,
			wantErr: "account.username is required",
		},
		{
			name: "missing base url",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
sources: [{name: s, path: p}]
`,
			wantErr: "poll.base_url is required",
		},
		{
			name: "no sources",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
`,
			wantErr: "at least one source",
		},
		{
			name: "duplicate source names",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}, {name: s, path: q}]
`,
			wantErr: "duplicate source name",
		},
		{
			name: "file backend without dir",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
session: {backend: file}
`,
			wantErr: "session.dir is required",
		},
		{
			name: "keyring backend without service",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
session: {backend: keyring}
`,
			wantErr: "session.service is required",
		},
		{
			name: "unknown backend",
			content: `
homeserver: https://matrix.example.org
account: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
session: {backend: redis}
`,
			wantErr: `unknown session.backend "redis"`,
		},
		{
			name: "unknown field",
			content: `
homeserver: https://matrix.example.org
acount: {username: "@w:example.org"}
poll: {base_url: https://a.example.org}
sources: [{name: s, path: p}]
`,
			wantErr: "acount",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load should have failed")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load should fail on a missing file")
	}
}
