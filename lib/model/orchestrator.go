// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package model executes sync plans. It owns download sessions, the
// bounded worker pool that fetches content, the sandbox containment
// checks, and deletion of local paths no longer in the manifest.
package model

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alauncher/updater/lib/diff"
	"github.com/alauncher/updater/lib/events"
	"github.com/alauncher/updater/lib/fetch"
	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/osutil"
	"github.com/alauncher/updater/lib/scanner"
	"github.com/alauncher/updater/lib/semaphore"
	"github.com/alauncher/updater/lib/sync"
)

type Config struct {
	// Root is the absolute sandbox path all writes stay inside.
	Root string
	// Scope tags events and metrics.
	Scope manifest.Scope
	// FileURLBase is the URL prefix content is fetched from; the entry's
	// relative path is appended.
	FileURLBase string
	// Fetcher does the actual byte transfer.
	Fetcher fetch.Fetcher
	// Downloaders is the number of concurrent downloads. Zero or less
	// means the default of 4.
	Downloaders int
	// ProgressInterval is how often coalesced progress events are emitted.
	// Zero means one second.
	ProgressInterval time.Duration
	// Events receives session and file events when set.
	Events *events.Logger
}

// An Orchestrator realizes sync plans against the sandbox root. Sessions
// are registered only for cancellation delivery; a terminated session is
// forgotten.
type Orchestrator struct {
	cfg Config

	// limiter bounds concurrent transfers across all sessions, so two
	// scopes syncing at once still respect the download budget.
	limiter *semaphore.Semaphore

	mut      sync.Mutex
	sessions map[string]*Session
	inflight map[string]*inflightDownload
}

// An inflightDownload is shared by all requests for the same URL and
// destination. Latecomers wait on done and take err instead of starting a
// duplicate transfer.
type inflightDownload struct {
	done chan struct{}
	err  error
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Downloaders <= 0 {
		cfg.Downloaders = 4
	}
	return &Orchestrator{
		cfg:      cfg,
		limiter:  semaphore.New(cfg.Downloaders),
		mut:      sync.NewMutex(),
		sessions: make(map[string]*Session),
		inflight: make(map[string]*inflightDownload),
	}
}

// Start begins executing the plan in the background and returns the new
// session. The caller may Wait() on it, poll its state, or Cancel() it.
func (o *Orchestrator) Start(ctx context.Context, plan *diff.Plan) *Session {
	ctx, cancel := context.WithCancel(ctx)
	session := newSession(o.cfg.Scope, plan, cancel)

	o.mut.Lock()
	o.sessions[session.ID] = session
	o.mut.Unlock()

	o.log(events.Queued, map[string]interface{}{
		"session": session.ID,
		"scope":   o.cfg.Scope.String(),
		"fetch":   len(plan.Fetch),
		"verify":  len(plan.Verify),
		"delete":  len(plan.Delete),
		"bytes":   plan.FetchBytes(),
	})

	go func() {
		defer cancel()
		o.run(ctx, session)
		o.mut.Lock()
		delete(o.sessions, session.ID)
		o.mut.Unlock()
	}()

	return session
}

// Sync executes the plan and blocks until the session is terminal.
func (o *Orchestrator) Sync(ctx context.Context, plan *diff.Plan) *Session {
	session := o.Start(ctx, plan)
	session.Wait()
	return session
}

// Cancel requests cancellation of a running session. The session converges
// to CANCELLED cooperatively, within one chunk read.
func (o *Orchestrator) Cancel(id string) error {
	o.mut.Lock()
	session, ok := o.sessions[id]
	o.mut.Unlock()
	if !ok {
		return ErrNoSuchSession
	}
	session.cancel()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, session *Session) {
	session.setState(StateRunning)
	o.log(events.SessionStarted, map[string]interface{}{
		"session": session.ID,
		"scope":   o.cfg.Scope.String(),
	})

	emitter := newProgressEmitter(session, o.cfg.Events, o.cfg.ProgressInterval)
	emitterCtx, stopEmitter := context.WithCancel(ctx)
	if o.cfg.Events != nil {
		go emitter.Serve(emitterCtx)
	}
	defer stopEmitter()

	// Integrity re-checks first. A mismatching or missing local file is
	// self-healed by joining the fetch queue.
	queue := session.plan.Fetch
	for _, entry := range session.plan.Verify {
		if ctx.Err() != nil {
			break
		}
		if o.verifyLocal(ctx, session, entry) {
			session.fileCompleted(entry.Name, 0)
			o.log(events.FileVerified, map[string]interface{}{
				"session": session.ID,
				"file":    entry.Name,
			})
		} else {
			metricVerifyMismatches.WithLabelValues(o.cfg.Scope.String()).Inc()
			queue = append(queue, entry)
		}
	}

	o.fetchAll(ctx, session, emitter, queue)

	if ctx.Err() != nil {
		o.finish(session, StateCancelled)
		return
	}

	if failed := session.failedCount(); failed > 0 {
		// Deletions are withheld so a half-synced tree keeps everything
		// it might still need on the next run.
		o.finishFailed(session, fmt.Sprintf("%d files failed", failed))
		return
	}

	o.deleteAll(session)
	o.finish(session, StateCompleted)
}

// fetchAll runs the bounded download pool over the queue.
func (o *Orchestrator) fetchAll(ctx context.Context, session *Session, emitter *progressEmitter, queue []*manifest.Entry) {
	jobs := make(chan *manifest.Entry)
	wg := sync.NewWaitGroup()
	wg.Add(o.cfg.Downloaders)
	for i := 0; i < o.cfg.Downloaders; i++ {
		go func() {
			defer wg.Done()
			for entry := range jobs {
				o.downloadFile(ctx, session, emitter, entry)
			}
		}()
	}

loop:
	for _, entry := range queue {
		select {
		case jobs <- entry:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
}

// downloadFile fetches one entry into the sandbox, deduplicating against
// identical in-flight downloads and retrying a hash mismatch once.
func (o *Orchestrator) downloadFile(ctx context.Context, session *Session, emitter *progressEmitter, entry *manifest.Entry) {
	dest, err := o.destPath(entry.Name)
	if err != nil {
		metricPathEscapes.WithLabelValues(o.cfg.Scope.String()).Inc()
		l.Warnf("Refusing %s: %v", entry.Name, err)
		o.fileFailed(session, entry.Name, err)
		return
	}

	url := o.fileURL(entry.Name)
	key := url + " -> " + dest

	o.mut.Lock()
	if fl, ok := o.inflight[key]; ok {
		o.mut.Unlock()
		l.Debugln("joining in-flight download:", key)
		select {
		case <-fl.done:
			err = fl.err
		case <-ctx.Done():
			// The original transfer belongs to another session and
			// carries on; this one just stops waiting for it.
			err = ctx.Err()
		}
	} else {
		fl = &inflightDownload{done: make(chan struct{})}
		o.inflight[key] = fl
		o.mut.Unlock()

		err = o.limiter.TakeWithContext(ctx, 1)
		if err == nil {
			err = o.fetchOne(ctx, session, emitter, entry, url, dest)
			if errors.Is(err, ErrHashMismatch) {
				l.Infof("Puller (%s): %v; retrying", entry.Name, err)
				err = o.fetchOne(ctx, session, emitter, entry, url, dest)
			}
			o.limiter.Give(1)
		}

		fl.err = err
		o.mut.Lock()
		delete(o.inflight, key)
		o.mut.Unlock()
		close(fl.done)
	}

	switch {
	case err == nil:
		session.fileCompleted(entry.Name, entry.Size)
		metricDownloadsTotal.WithLabelValues(o.cfg.Scope.String(), resultOK).Inc()
		metricDownloadedBytes.WithLabelValues(o.cfg.Scope.String()).Add(float64(entry.Size))
		o.log(events.FileVerified, map[string]interface{}{
			"session": session.ID,
			"file":    entry.Name,
		})
	case errors.Is(err, context.Canceled):
		// Session cancellation, not a file failure.
	default:
		o.fileFailed(session, entry.Name, err)
	}
}

// fetchOne streams the content to a temporary file, verifies the hash and
// renames it into place. The temporary never survives an error.
func (o *Orchestrator) fetchOne(ctx context.Context, session *Session, emitter *progressEmitter, entry *manifest.Entry, url, dest string) error {
	if err := o.clearConflicts(session, entry); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp := osutil.TempName(dest)
	fd, err := os.Create(tmp)
	if err != nil {
		return err
	}

	o.log(events.DownloadStarted, map[string]interface{}{
		"session": session.ID,
		"file":    entry.Name,
		"bytes":   entry.Size,
	})
	state := emitter.register(entry.Name, entry.Size)
	defer emitter.deregister(entry.Name)

	err = o.cfg.Fetcher.Fetch(ctx, url, fd, state.Update)
	if cerr := fd.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	hash, err := scanner.HashFile(ctx, tmp, nil)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if hash != entry.Hash {
		os.Remove(tmp)
		return ErrHashMismatch
	}

	return osutil.InWritableDir(func(string) error {
		return osutil.Rename(tmp, dest)
	}, dest)
}

// clearConflicts removes planned deletions standing where the destination
// must go: a file where an ancestor directory is needed, or a directory
// where the file itself lands. Deletions otherwise run last so a failing
// session keeps everything it might still need, but a path the same plan
// replaces holds nothing worth keeping.
func (o *Orchestrator) clearConflicts(session *Session, entry *manifest.Entry) error {
	o.mut.Lock()
	defer o.mut.Unlock()

	parts := strings.Split(entry.Name, "/")
	for i := 1; i < len(parts); i++ {
		anc := strings.Join(parts[:i], "/")
		if !session.scheduledDelete(anc) {
			continue
		}
		path, err := o.destPath(anc)
		if err != nil {
			return err
		}
		if info, err := os.Lstat(path); err == nil && !info.IsDir() {
			l.Debugln("removing conflicting file:", anc)
			if err := osutil.InWritableDir(os.Remove, path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}

	if !session.scheduledDelete(entry.Name) {
		return nil
	}
	path, err := o.destPath(entry.Name)
	if err != nil {
		return err
	}
	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		l.Debugln("removing conflicting directory:", entry.Name)
		if err := osutil.InWritableDir(os.RemoveAll, path); err != nil {
			return err
		}
	}
	return nil
}

// verifyLocal re-hashes an existing local file against the manifest.
func (o *Orchestrator) verifyLocal(ctx context.Context, session *Session, entry *manifest.Entry) bool {
	path, err := o.destPath(entry.Name)
	if err != nil {
		return false
	}
	hash, err := scanner.HashFile(ctx, path, nil)
	if err != nil {
		l.Debugln("verify:", entry.Name, err)
		return false
	}
	return hash == entry.Hash
}

// deleteAll removes local-only paths, children before parents. A failed
// delete is left for the next session. Paths that the same plan fetched
// over, or that now hold fetched content, are skipped: those deletions
// were satisfied when the conflicting local entry was cleared.
func (o *Orchestrator) deleteAll(session *Session) {
	fetched := make(map[string]struct{})
	ancestors := make(map[string]struct{})
	for _, entry := range session.plan.Fetch {
		fetched[entry.Name] = struct{}{}
		parts := strings.Split(entry.Name, "/")
		for i := 1; i < len(parts); i++ {
			ancestors[strings.Join(parts[:i], "/")] = struct{}{}
		}
	}
	replaced := func(name string) bool {
		if _, ok := fetched[name]; ok {
			return true
		}
		if _, ok := ancestors[name]; ok {
			return true
		}
		parts := strings.Split(name, "/")
		for i := 1; i < len(parts); i++ {
			if _, ok := fetched[strings.Join(parts[:i], "/")]; ok {
				return true
			}
		}
		return false
	}

	for _, name := range session.plan.Delete {
		if replaced(name) {
			l.Debugln("replaced by fetch, not deleting:", name)
			session.fileDeleted()
			continue
		}
		path, err := o.destPath(name)
		if err != nil {
			metricPathEscapes.WithLabelValues(o.cfg.Scope.String()).Inc()
			l.Warnf("Refusing delete %s: %v", name, err)
			continue
		}
		err = osutil.InWritableDir(os.Remove, path)
		if err != nil && !os.IsNotExist(err) {
			l.Infof("Delete %s: %v; will retry next session", name, err)
			continue
		}
		session.fileDeleted()
		metricDeletesTotal.WithLabelValues(o.cfg.Scope.String()).Inc()
		o.log(events.FileDeleted, map[string]interface{}{
			"session": session.ID,
			"file":    name,
		})
	}
}

func (o *Orchestrator) fileFailed(session *Session, name string, err error) {
	session.fileFailed(name, err.Error())
	metricDownloadsTotal.WithLabelValues(o.cfg.Scope.String(), resultFailed).Inc()
	o.log(events.FileFailed, map[string]interface{}{
		"session": session.ID,
		"file":    name,
		"reason":  err.Error(),
	})
}

func (o *Orchestrator) finish(session *Session, state SessionState) {
	session.setState(state)
	metricSessionsTotal.WithLabelValues(o.cfg.Scope.String(), state.String()).Inc()

	stats := session.Stats()
	data := map[string]interface{}{
		"session":   session.ID,
		"scope":     o.cfg.Scope.String(),
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"deleted":   stats.Deleted,
		"bytes":     stats.Bytes,
	}
	switch state {
	case StateCancelled:
		o.log(events.SessionCancelled, data)
	default:
		o.log(events.SessionCompleted, data)
	}
}

func (o *Orchestrator) finishFailed(session *Session, reason string) {
	session.setState(StateFailed)
	metricSessionsTotal.WithLabelValues(o.cfg.Scope.String(), StateFailed.String()).Inc()

	stats := session.Stats()
	o.log(events.SessionFailed, map[string]interface{}{
		"session":   session.ID,
		"scope":     o.cfg.Scope.String(),
		"reason":    reason,
		"completed": stats.Completed,
		"failed":    stats.Failed,
	})
}

// destPath joins a relative manifest path onto the sandbox root and
// re-checks lexical containment. The manifest tree already rejected bad
// paths at construction; this is the last check before a filesystem write.
func (o *Orchestrator) destPath(name string) (string, error) {
	dest := filepath.Join(o.cfg.Root, filepath.FromSlash(name))
	rel, err := filepath.Rel(o.cfg.Root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return dest, nil
}

// fileURL appends the entry's relative path to the content base URL,
// escaping each segment so names with spaces or URL metacharacters still
// address the right object.
func (o *Orchestrator) fileURL(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(o.cfg.FileURLBase, "/") + "/" + strings.Join(segments, "/")
}

func (o *Orchestrator) log(t events.EventType, data map[string]interface{}) {
	if o.cfg.Events != nil {
		o.cfg.Events.Log(t, data)
	}
}
