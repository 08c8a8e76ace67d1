// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/alauncher/updater/lib/config"
	"github.com/alauncher/updater/lib/diff"
	"github.com/alauncher/updater/lib/events"
	"github.com/alauncher/updater/lib/fetch"
	"github.com/alauncher/updater/lib/logger"
	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/model"
	"github.com/alauncher/updater/lib/scanner"
	"github.com/alauncher/updater/lib/svcutil"
)

type syncCmd struct {
	Scope         string `arg:"" help:"Content scope to synchronize (client, assets, runtime)."`
	MetricsListen string `help:"Address to expose prometheus metrics on; disabled when unset." env:"ALSYNC_METRICS"`
}

func (c *syncCmd) Run(params *cli) error {
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
	if sc.ManifestURL == "" || sc.FileURLBase == "" {
		return fmt.Errorf("scope %q: manifestUrl and fileUrlBase are required for sync", scope)
	}
	pubKey, err := os.ReadFile(cfg.PublicKeyFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	evLogger := events.NewLogger()
	fetcher := fetch.NewHTTPFetcher(cfg.AuthToken)

	sup := suture.New("sync", svcutil.SpecWithDebugLogger(logger.DefaultLogger))
	sup.Add(svcutil.AsService(func(ctx context.Context) error {
		return consoleEvents(ctx, evLogger)
	}, "console-events"))
	if c.MetricsListen != "" {
		sup.Add(svcutil.AsService(func(ctx context.Context) error {
			return serveMetrics(ctx, c.MetricsListen, evLogger)
		}, "metrics"))
	}
	sup.Add(svcutil.AsService(func(ctx context.Context) error {
		err := runSync(ctx, scope, sc, cfg, pubKey, fetcher, evLogger)
		cancel()
		return svcutil.NoRestartErr(err)
	}, "sync"))

	err = sup.Serve(ctx)
	if svcutil.IsTerminate(err) {
		return nil
	}
	return err
}

func runSync(ctx context.Context, scope manifest.Scope, sc config.ScopeConfiguration, cfg *config.Configuration, pubKey []byte, fetcher fetch.Fetcher, evLogger *events.Logger) error {
	var buf bytes.Buffer
	if err := fetcher.Fetch(ctx, sc.ManifestURL, &buf, nil); err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}
	signed, err := manifest.ParseSigned(buf.Bytes())
	if err != nil {
		return err
	}
	remote, err := signed.Verify(pubKey)
	if err != nil {
		return err
	}
	if remote.ContentScope != scope {
		return fmt.Errorf("manifest is for scope %q, not %q", remote.ContentScope, scope)
	}

	include, fastCheck, verify, protect, err := sc.Matchers()
	if err != nil {
		return err
	}

	hashers := cfg.Downloads.Hashers
	if hashers <= 0 {
		hashers = runtime.NumCPU()
	}
	local, err := scanner.Walk(ctx, scanner.Config{
		Root:      sc.Root,
		Scope:     scope,
		Include:   include,
		FastCheck: fastCheck,
		Hashers:   hashers,
		Events:    evLogger,
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", sc.Root, err)
	}

	plan := diff.Compute(local, remote.Root, verify, protect)
	if plan.Empty() {
		fmt.Println("Up to date.")
		return nil
	}

	orch := model.NewOrchestrator(model.Config{
		Root:             sc.Root,
		Scope:            scope,
		FileURLBase:      sc.FileURLBase,
		Fetcher:          fetcher,
		Downloaders:      cfg.Downloads.Workers,
		ProgressInterval: time.Duration(cfg.Downloads.ProgressIntervalS) * time.Second,
		Events:           evLogger,
	})

	session := orch.Sync(ctx, plan)
	stats := session.Stats()
	switch state := session.State(); state {
	case model.StateCompleted:
		fmt.Printf("Done: %d files, %d bytes, %d deleted.\n", stats.Completed, stats.Bytes, stats.Deleted)
		return nil
	case model.StateCancelled:
		fmt.Println("Cancelled.")
		return nil
	default:
		for name, reason := range session.FailedFiles() {
			fmt.Printf("  failed: %s (%s)\n", name, reason)
		}
		return fmt.Errorf("sync %s: %d of %d files failed", scope, stats.Failed, stats.Total)
	}
}

// consoleEvents prints session progress on stdout until the context ends.
func consoleEvents(ctx context.Context, evLogger *events.Logger) error {
	sub := evLogger.Subscribe(events.DownloadStarted | events.DownloadProgress | events.FileVerified | events.FileFailed | events.FileDeleted)
	defer evLogger.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, _ := ev.Data.(map[string]interface{})
			switch ev.Type {
			case events.DownloadProgress:
				fmt.Printf("  %s: %d / %d bytes\n", data["file"], data["bytes"], data["total"])
			case events.FileFailed:
				fmt.Printf("  %s: failed: %s\n", data["file"], data["reason"])
			default:
				fmt.Printf("  %s: %s\n", data["file"], ev.Type)
			}
		}
	}
}

// serveMetrics exposes prometheus metrics plus a long-poll event feed.
// GET /events?since=N blocks until an event with a higher ID exists and
// returns the buffered events after N as JSON.
func serveMetrics(ctx context.Context, addr string, evLogger *events.Logger) error {
	sub := evLogger.Subscribe(events.AllEvents)
	defer evLogger.Unsubscribe(sub)
	bufSub := events.NewBufferedSubscription(sub, events.BufferSize)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		evs := bufSub.Since(since, nil)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(evs)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return ctx.Err()
	}
	return err
}
