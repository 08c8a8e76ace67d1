// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alauncher/updater/lib/events"
	"github.com/alauncher/updater/lib/sync"
)

// A downloadState tracks the byte progress of one in-flight download. The
// fetch loop updates it per chunk; the progress emitter reads it on its
// own schedule.
type downloadState struct {
	name    string
	total   int64
	copied  atomic.Int64
	updated atomic.Int64 // unix nanos of last change
}

// Update records the cumulative byte count received so far.
func (d *downloadState) Update(bytes int64) {
	d.copied.Store(bytes)
	d.updated.Store(time.Now().UnixNano())
}

// A progressEmitter emits coalesced DownloadProgress events for all
// in-flight downloads of a session at a fixed interval. Chunk arrivals
// between ticks collapse into one event, so a slow download pipe never
// multiplies into an event flood.
type progressEmitter struct {
	session  *Session
	evLogger *events.Logger
	interval time.Duration

	mut      sync.Mutex
	registry map[string]*downloadState
	lastSeen int64
}

func newProgressEmitter(session *Session, evLogger *events.Logger, interval time.Duration) *progressEmitter {
	if interval <= 0 {
		interval = time.Second
	}
	return &progressEmitter{
		session:  session,
		evLogger: evLogger,
		interval: interval,
		mut:      sync.NewMutex(),
		registry: make(map[string]*downloadState),
	}
}

// Serve emits progress until the context is cancelled. A final sweep on
// shutdown is unnecessary as terminal session events carry the summary.
func (p *progressEmitter) Serve(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit()
		}
	}
}

func (p *progressEmitter) emit() {
	p.mut.Lock()
	defer p.mut.Unlock()

	var newest int64
	for _, d := range p.registry {
		if u := d.updated.Load(); u > newest {
			newest = u
		}
	}
	if newest == p.lastSeen {
		l.Debugln("progress emitter: nothing new")
		return
	}
	p.lastSeen = newest

	for _, d := range p.registry {
		p.evLogger.Log(events.DownloadProgress, map[string]interface{}{
			"session": p.session.ID,
			"file":    d.name,
			"bytes":   d.copied.Load(),
			"total":   d.total,
		})
	}
}

func (p *progressEmitter) register(name string, total int64) *downloadState {
	d := &downloadState{name: name, total: total}
	d.updated.Store(time.Now().UnixNano())
	p.mut.Lock()
	p.registry[name] = d
	p.mut.Unlock()
	return d
}

func (p *progressEmitter) deregister(name string) {
	p.mut.Lock()
	delete(p.registry, name)
	p.mut.Unlock()
}
