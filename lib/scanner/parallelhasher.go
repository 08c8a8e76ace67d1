// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package scanner

import (
	"context"

	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/sync"
)

// The parallel hasher reads file jobs from the inbox, hashes the file
// contents and sends the finished manifest entry to the outbox. A number of
// workers are used in parallel. The outbox becomes closed when the inbox is
// closed and all items handled; done is closed at the same time.

func newParallelHasher(ctx context.Context, cfg Config, workers int, outbox chan *manifest.Entry, inbox chan fileJob, counter Counter, done chan struct{}) {
	wg := sync.NewWaitGroup()
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			hashJobs(ctx, cfg, outbox, inbox, counter)
			wg.Done()
		}()
	}

	go func() {
		wg.Wait()
		if done != nil {
			close(done)
		}
		close(outbox)
	}()
}

func hashJobs(ctx context.Context, cfg Config, outbox chan *manifest.Entry, inbox chan fileJob, counter Counter) {
	for f := range inbox {
		var hash string
		if cfg.FastCheck != nil && cfg.FastCheck.Match(f.rel) {
			hash = FastHash(f.size)
			if counter != nil {
				counter.Update(f.size)
			}
		} else {
			var err error
			hash, err = HashFile(ctx, f.abs, counter)
			if err != nil {
				l.Warnf("Hashing %s: %v; entry omitted", f.rel, err)
				continue
			}
		}

		entry, err := manifest.NewFile(f.rel, f.size, hash)
		if err != nil {
			l.Warnf("Hashing %s: %v; entry omitted", f.rel, err)
			continue
		}

		select {
		case outbox <- entry:
		case <-ctx.Done():
			return
		}
	}
}
