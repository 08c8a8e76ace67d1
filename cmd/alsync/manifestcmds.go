// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/alauncher/updater/lib/config"
	"github.com/alauncher/updater/lib/ignore"
	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/osutil"
	"github.com/alauncher/updater/lib/scanner"
)

type signCmd struct {
	Key      string `help:"Private key PEM file." required:"" type:"existingfile"`
	Manifest string `arg:"" help:"Unsigned manifest JSON file." type:"existingfile"`
	Output   string `short:"o" help:"Output file; stdout when unset."`
}

func (c *signCmd) Run(_ *cli) error {
	bs, err := os.ReadFile(c.Manifest)
	if err != nil {
		return err
	}
	var m manifest.Manifest
	if err := json.Unmarshal(bs, &m); err != nil {
		return err
	}
	if err := m.Root.Validate(); err != nil {
		return err
	}

	key, err := os.ReadFile(c.Key)
	if err != nil {
		return err
	}
	signed, err := manifest.SignManifest(&m, key)
	if err != nil {
		return err
	}
	return writeOutput(c.Output, signed)
}

type verifyCmd struct {
	Key      string `help:"Public key PEM file." required:"" type:"existingfile"`
	Manifest string `arg:"" help:"Signed manifest JSON file." type:"existingfile"`
}

func (c *verifyCmd) Run(_ *cli) error {
	bs, err := os.ReadFile(c.Manifest)
	if err != nil {
		return err
	}
	signed, err := manifest.ParseSigned(bs)
	if err != nil {
		return err
	}
	key, err := os.ReadFile(c.Key)
	if err != nil {
		return err
	}
	m, err := signed.Verify(key)
	if err != nil {
		return err
	}

	files := 0
	for _, e := range m.Root.Flatten() {
		if !e.IsDir() {
			files++
		}
	}
	fmt.Printf("OK: scope %s, generated %s, %d files\n", m.ContentScope, m.GeneratedAt.Format("2006-01-02 15:04:05 MST"), files)
	return nil
}

type publishCmd struct {
	Scope  string `arg:"" help:"Content scope to publish (client, assets, runtime)."`
	Key    string `help:"Private key PEM file." required:"" type:"existingfile"`
	Root   string `help:"Content directory; the scope root from the configuration when unset."`
	Output string `short:"o" help:"Output file; stdout when unset."`
}

func (c *publishCmd) Run(params *cli) error {
	var scope manifest.Scope
	if err := scope.UnmarshalText([]byte(c.Scope)); err != nil {
		return err
	}

	root := c.Root
	var include, fastCheck *ignore.Matcher
	if root == "" {
		cfg, err := config.Load(params.Config)
		if err != nil {
			return err
		}
		sc, err := cfg.Scope(scope)
		if err != nil {
			return err
		}
		root = sc.Root
		if include, fastCheck, _, _, err = sc.Matchers(); err != nil {
			return err
		}
	}

	tree, err := scanner.Walk(context.Background(), scanner.Config{
		Root:      root,
		Scope:     scope,
		Include:   include,
		FastCheck: fastCheck,
		Hashers:   runtime.NumCPU(),
	})
	if err != nil {
		return err
	}

	key, err := os.ReadFile(c.Key)
	if err != nil {
		return err
	}
	signed, err := manifest.SignManifest(manifest.New(tree, scope), key)
	if err != nil {
		return err
	}
	return writeOutput(c.Output, signed)
}

// writeOutput writes to the path atomically, or to stdout when the path is
// empty.
func writeOutput(path string, bs []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(bs, '\n'))
		return err
	}
	w, err := osutil.CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(bs); err != nil {
		return err
	}
	return w.Close()
}
