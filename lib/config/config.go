// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config loads the YAML launcher configuration: one section per
// content scope plus download tuning. The sync engine itself takes all of
// these as plain arguments; this is the outer layer that supplies them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alauncher/updater/lib/ignore"
	"github.com/alauncher/updater/lib/manifest"
)

type Configuration struct {
	// Scopes maps content scope names to their sync settings.
	Scopes map[string]ScopeConfiguration `yaml:"scopes"`
	// Downloads tunes the orchestrator.
	Downloads DownloadConfiguration `yaml:"downloads"`
	// AuthToken is sent as a bearer token on manifest and file fetches.
	AuthToken string `yaml:"authToken"`
	// PublicKeyFile is the PEM file manifests are verified against.
	PublicKeyFile string `yaml:"publicKeyFile"`
}

type ScopeConfiguration struct {
	// Root is the absolute sandbox path for this scope.
	Root string `yaml:"root"`
	// ManifestURL is where the signed manifest is fetched from.
	ManifestURL string `yaml:"manifestUrl"`
	// FileURLBase is the URL prefix for file content.
	FileURLBase string `yaml:"fileUrlBase"`
	// Include restricts which paths take part in syncing at all.
	Include []string `yaml:"include"`
	// FastCheck lists patterns hashed by size only instead of content.
	FastCheck []string `yaml:"fastCheck"`
	// Verify lists patterns that get an integrity re-check even when the
	// manifest hash matches the local snapshot.
	Verify []string `yaml:"verify"`
	// Protect lists local paths never deleted by a sync, such as user
	// configuration and saves inside the sandbox root.
	Protect []string `yaml:"protect"`
}

type DownloadConfiguration struct {
	// Workers is the concurrent download count. Zero means the default.
	Workers int `yaml:"workers"`
	// Hashers is the concurrent hashing routine count for scans.
	Hashers int `yaml:"hashers"`
	// ProgressIntervalS is the progress event interval in seconds.
	ProgressIntervalS int `yaml:"progressIntervalS"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Configuration, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Configuration
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("in %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Configuration) Validate() error {
	for name, sc := range c.Scopes {
		if !manifest.Scope(name).Valid() {
			return fmt.Errorf("unknown scope %q", name)
		}
		if sc.Root == "" {
			return fmt.Errorf("scope %q: root is required", name)
		}
		if !filepath.IsAbs(sc.Root) {
			return fmt.Errorf("scope %q: root must be absolute", name)
		}
	}
	return nil
}

// Scope returns the configuration for the named scope.
func (c *Configuration) Scope(scope manifest.Scope) (ScopeConfiguration, error) {
	sc, ok := c.Scopes[scope.String()]
	if !ok {
		return ScopeConfiguration{}, fmt.Errorf("scope %q not configured", scope)
	}
	return sc, nil
}

// Matchers compiles the scope's pattern lists. A nil matcher stands for an
// absent list.
func (sc ScopeConfiguration) Matchers() (include, fastCheck, verify, protect *ignore.Matcher, err error) {
	if include, err = compile(sc.Include); err != nil {
		return
	}
	if fastCheck, err = compile(sc.FastCheck); err != nil {
		return
	}
	if verify, err = compile(sc.Verify); err != nil {
		return
	}
	protect, err = compile(sc.Protect)
	return
}

func compile(lines []string) (*ignore.Matcher, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	return ignore.New(lines...)
}
