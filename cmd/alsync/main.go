// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command alsync is the update synchronization tool. The publish side
// hashes a content directory and signs the resulting manifest; the client
// side verifies, diffs and downloads, then optionally launches the game.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/alauncher/updater/lib/logger"
)

type cli struct {
	Config  string `help:"Configuration file." default:"alsync.yaml" env:"ALSYNC_CONFIG"`
	Verbose bool   `short:"v" help:"Enable verbose output."`

	Keygen  keygenCmd  `cmd:"" help:"Generate a manifest signing key pair."`
	Sign    signCmd    `cmd:"" help:"Sign an existing manifest file."`
	Verify  verifyCmd  `cmd:"" help:"Verify a signed manifest file."`
	Publish publishCmd `cmd:"" help:"Hash a content directory and write a signed manifest."`
	Sync    syncCmd    `cmd:"" help:"Synchronize a content scope against its published manifest."`
	Launch  launchCmd  `cmd:"" help:"Launch the game from a synchronized scope."`
}

func main() {
	var params cli
	kctx := kong.Parse(&params,
		kong.Name("alsync"),
		kong.Description("ALauncher update synchronization tool."),
		kong.UsageOnError(),
	)

	if params.Verbose {
		logger.DefaultLogger.SetFlags(logger.DebugFlags)
	}

	if err := kctx.Run(&params); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
