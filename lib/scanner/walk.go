// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/alauncher/updater/lib/events"
	"github.com/alauncher/updater/lib/ignore"
	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/osutil"
)

type Config struct {
	// Root is the absolute path of the directory to scan.
	Root string
	// Scope tags progress events with the content scope being scanned.
	Scope manifest.Scope
	// If Include is not nil, only matching paths are considered at all.
	Include *ignore.Matcher
	// If FastCheck is not nil, matching files get a size-only placeholder
	// hash instead of a full content hash.
	FastCheck *ignore.Matcher
	// Number of routines to use for hashing.
	Hashers int
	// Optional progress tick interval which defines how often ScanProgress
	// events are emitted. Negative number means disabled.
	ProgressTickIntervalS int
	// Events receives ScanProgress events when set.
	Events *events.Logger
}

type fileJob struct {
	rel  string
	abs  string
	size int64
}

// Walk hashes the directory subtree under cfg.Root and returns it as a
// manifest tree. Two identical trees always produce equal results;
// canonical serialization of the result is byte-identical.
//
// An unreadable file or directory inside the tree is logged and omitted;
// only an inaccessible root is fatal.
func Walk(ctx context.Context, cfg Config) (*manifest.Entry, error) {
	w := walker{cfg}

	if w.Hashers < 1 {
		w.Hashers = 1
	}

	return w.walk(ctx)
}

type walker struct {
	Config
}

func (w *walker) walk(ctx context.Context) (*manifest.Entry, error) {
	l.Debugln("Walk", w.Root, w.Scope)

	files, dirs, err := w.collect(ctx)
	if err != nil {
		return nil, err
	}

	root, _ := manifest.NewDir("")
	for _, dir := range dirs {
		entry, err := manifest.NewDir(dir)
		if err != nil {
			l.Warnf("Scanning %s: %v; skipping", dir, err)
			continue
		}
		if err := root.Insert(entry); err != nil {
			return nil, err
		}
	}

	hashed, done := w.hashFiles(ctx, files)
	insertErr := insertHashed(root, hashed)
	<-done
	if insertErr != nil {
		return nil, insertErr
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return root, nil
}

// insertHashed adds finished entries to the tree. The channel is always
// consumed to the end, even after an insert error, so the hashers behind
// it are never left blocked on send.
func insertHashed(root *manifest.Entry, hashed <-chan *manifest.Entry) error {
	var firstErr error
	for entry := range hashed {
		if firstErr != nil {
			continue
		}
		if err := root.Insert(entry); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

// collect walks the filesystem tree below the root and returns the files
// to be hashed and the directories to be represented, both filtered by the
// include patterns.
func (w *walker) collect(ctx context.Context) ([]fileJob, []string, error) {
	var files []fileJob
	var dirs []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if path == w.Root {
			// The root entry itself is not part of the tree; an error
			// here means the whole walk is dead.
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, rerr := filepath.Rel(w.Root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			l.Warnf("Scanning %s: %v; entry omitted", rel, err)
			return nil
		}

		if osutil.IsTemporary(path) {
			l.Debugln("temporary:", rel)
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			// Under no circumstances shall we descend into a symlink.
			l.Debugln("skip walking (symlink):", rel)
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if w.Include == nil || w.Include.Match(rel) {
				dirs = append(dirs, rel)
			}
			return nil
		}

		if !d.Type().IsRegular() {
			l.Debugln("skip walking (special):", rel)
			return nil
		}

		if w.Include != nil && !w.Include.Match(rel) {
			l.Debugln("skip walking (patterns):", rel)
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			l.Warnf("Scanning %s: %v; entry omitted", rel, ierr)
			return nil
		}

		files = append(files, fileJob{rel: rel, abs: path, size: info.Size()})
		return nil
	}

	if err := filepath.WalkDir(w.Root, walkFn); err != nil {
		return nil, nil, err
	}
	return files, dirs, nil
}

// hashFiles feeds the collected files through the parallel hasher. The
// returned channel yields finished manifest entries; done is closed when
// all hashers have exited.
func (w *walker) hashFiles(ctx context.Context, files []fileJob) (<-chan *manifest.Entry, <-chan struct{}) {
	inbox := make(chan fileJob)
	outbox := make(chan *manifest.Entry)
	done := make(chan struct{})

	var counter Counter
	if w.ProgressTickIntervalS >= 0 && w.Events != nil {
		interval := w.ProgressTickIntervalS
		if interval == 0 {
			// Defaults to every 2 seconds.
			interval = 2
		}

		var total int64
		for _, f := range files {
			total += f.size
		}

		bc := newByteCounter()
		counter = bc
		ticker := time.NewTicker(time.Duration(interval) * time.Second)
		go func() {
			defer bc.Close()
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					current := bc.Total()
					w.Events.Log(events.ScanProgress, map[string]interface{}{
						"scope":   w.Scope.String(),
						"current": current,
						"total":   total,
						"rate":    bc.Rate(), // bytes per second
					})
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	newParallelHasher(ctx, w.Config, w.Hashers, outbox, inbox, counter, done)

	go func() {
		defer close(inbox)
		for _, f := range files {
			select {
			case inbox <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	return outbox, done
}

// A byteCounter gets bytes added to it via Update() and then provides the
// Total() and one minute moving average Rate() in bytes per second.
type byteCounter struct {
	total int64
	metrics.EWMA
	stop chan struct{}
}

func newByteCounter() *byteCounter {
	c := &byteCounter{
		EWMA: metrics.NewEWMA1(), // a one minute exponentially weighted moving average
		stop: make(chan struct{}),
	}
	go c.ticker()
	return c
}

func (c *byteCounter) ticker() {
	// The metrics.EWMA expects clock ticks every five seconds in order to
	// decay the average properly.
	t := time.NewTicker(5 * time.Second)
	for {
		select {
		case <-t.C:
			c.Tick()
		case <-c.stop:
			t.Stop()
			return
		}
	}
}

func (c *byteCounter) Update(bytes int64) {
	atomic.AddInt64(&c.total, bytes)
	c.EWMA.Update(bytes)
}

func (c *byteCounter) Total() int64 {
	return atomic.LoadInt64(&c.total)
}

func (c *byteCounter) Close() {
	close(c.stop)
}
