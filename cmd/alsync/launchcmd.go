// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kballard/go-shellquote"

	"github.com/alauncher/updater/lib/config"
	"github.com/alauncher/updater/lib/launch"
	"github.com/alauncher/updater/lib/manifest"
)

type launchCmd struct {
	Scope     string   `arg:"" help:"Content scope to launch from (client, assets, runtime)."`
	Java      string   `help:"Java binary to use." default:"java"`
	MainClass string   `help:"Main class to run." required:""`
	JvmArgs   string   `help:"Extra JVM arguments, shell quoted."`
	GameArgs  []string `arg:"" optional:"" passthrough:"" help:"Arguments passed to the game."`
}

func (c *launchCmd) Run(params *cli) error {
	var scope manifest.Scope
	if err := scope.UnmarshalText([]byte(c.Scope)); err != nil {
		return err
	}

	cfg, err := config.Load(params.Config)
	if err != nil {
		return err
	}
	sc, err := cfg.Scope(scope)
	if err != nil {
		return err
	}

	jars, err := launch.FindJars(sc.Root)
	if err != nil {
		return err
	}
	if len(jars) == 0 {
		return fmt.Errorf("no jars found under %s; run sync first", sc.Root)
	}

	// JVM arguments go before the main class, game arguments after.
	var args []string
	if c.JvmArgs != "" {
		jvmArgs, err := shellquote.Split(c.JvmArgs)
		if err != nil {
			return fmt.Errorf("parsing jvm args: %w", err)
		}
		args = jvmArgs
	}
	args = append(args, "-cp", launch.Classpath(jars), c.MainClass)
	args = append(args, c.GameArgs...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	table := launch.NewTable()
	proc, err := table.Start(ctx, launch.Command{
		Binary:  c.Java,
		Args:    args,
		WorkDir: sc.Root,
	})
	if err != nil {
		return err
	}

	result := proc.Wait()
	if result.Code != 0 {
		fmt.Fprint(os.Stderr, proc.Output())
		return fmt.Errorf("game exited with code %d", result.Code)
	}
	return nil
}
