// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alauncher/updater/lib/manifest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
scopes:
  client:
    root: /opt/game/client
    manifestUrl: https://updates.example.com/client/manifest.json
    fileUrlBase: https://updates.example.com/client/files
    fastCheck:
      - assets
    protect:
      - config/user.cfg
downloads:
  workers: 8
  progressIntervalS: 2
authToken: sekrit
publicKeyFile: /etc/alsync/public.pem
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	sc, err := cfg.Scope(manifest.ScopeClient)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Root != "/opt/game/client" {
		t.Errorf("unexpected root %q", sc.Root)
	}
	if cfg.Downloads.Workers != 8 {
		t.Errorf("unexpected workers %d", cfg.Downloads.Workers)
	}

	include, fastCheck, verify, protect, err := sc.Matchers()
	if err != nil {
		t.Fatal(err)
	}
	if include != nil || verify != nil {
		t.Error("absent pattern lists should compile to nil matchers")
	}
	if !fastCheck.Match("assets/a.png") {
		t.Error("fast-check pattern not effective")
	}
	if !protect.Match("config/user.cfg") {
		t.Error("protect pattern not effective")
	}

	if _, err := cfg.Scope(manifest.ScopeRuntime); err == nil {
		t.Error("expected error for unconfigured scope")
	}
}

func TestLoadRejectsBadScopes(t *testing.T) {
	cases := []string{
		"scopes:\n  frobnicator:\n    root: /x\n",
		"scopes:\n  client: {}\n",
		"scopes:\n  client:\n    root: relative/path\n",
	}
	for _, content := range cases {
		path := writeConfig(t, content)
		if _, err := Load(path); err == nil {
			t.Errorf("expected error for config:\n%s", content)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
