// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alauncher/updater/lib/signature"
)

type keygenCmd struct {
	Dir string `help:"Directory to write the key pair into." default:"." type:"existingdir"`
}

func (c *keygenCmd) Run(_ *cli) error {
	privPath := filepath.Join(c.Dir, "private.pem")
	pubPath := filepath.Join(c.Dir, "public.pem")

	for _, path := range []string{privPath, pubPath} {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("%s already exists; refusing to overwrite", path)
		}
	}

	priv, pub, err := signature.GenerateKeys()
	if err != nil {
		return err
	}

	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return err
	}

	fmt.Println("Wrote", privPath, "and", pubPath)
	return nil
}
