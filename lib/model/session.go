// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import (
	"context"

	"github.com/google/uuid"

	"github.com/alauncher/updater/lib/diff"
	"github.com/alauncher/updater/lib/manifest"
	"github.com/alauncher/updater/lib/sync"
)

type SessionState int

const (
	StatePending SessionState = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is final. A terminal session never
// changes state again.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Stats is the summary a caller sees when a session reaches a terminal
// state. Total counts planned fetch and verify entries.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Deleted   int
	Bytes     int64
}

// A Session tracks one execution of a sync plan. It is created by the
// orchestrator, mutated only by the orchestrator's own routines, and
// discarded once terminal.
type Session struct {
	ID    string
	Scope manifest.Scope

	plan    *diff.Plan
	deletes map[string]struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mut       sync.Mutex
	state     SessionState
	completed []string
	failed    map[string]string
	deleted   int
	bytes     int64
}

func newSession(scope manifest.Scope, plan *diff.Plan, cancel context.CancelFunc) *Session {
	deletes := make(map[string]struct{}, len(plan.Delete))
	for _, name := range plan.Delete {
		deletes[name] = struct{}{}
	}
	return &Session{
		ID:      uuid.NewString(),
		Scope:   scope,
		plan:    plan,
		deletes: deletes,
		cancel:  cancel,
		done:    make(chan struct{}),
		mut:     sync.NewMutex(),
		failed:  make(map[string]string),
	}
}

// scheduledDelete reports whether the plan removes the named path. The set
// is fixed at session creation and safe for concurrent reads.
func (s *Session) scheduledDelete(name string) bool {
	_, ok := s.deletes[name]
	return ok
}

func (s *Session) State() SessionState {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.state
}

func (s *Session) Stats() Stats {
	s.mut.Lock()
	defer s.mut.Unlock()
	return Stats{
		Total:     len(s.plan.Fetch) + len(s.plan.Verify),
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Deleted:   s.deleted,
		Bytes:     s.bytes,
	}
}

// FailedFiles returns the names of entries that failed, with reasons.
func (s *Session) FailedFiles() map[string]string {
	s.mut.Lock()
	defer s.mut.Unlock()
	failed := make(map[string]string, len(s.failed))
	for name, reason := range s.failed {
		failed[name] = reason
	}
	return failed
}

// Wait blocks until the session reaches a terminal state.
func (s *Session) Wait() {
	<-s.done
}

func (s *Session) setState(state SessionState) {
	s.mut.Lock()
	if !s.state.IsTerminal() {
		s.state = state
	}
	s.mut.Unlock()
	if state.IsTerminal() {
		close(s.done)
	}
}

func (s *Session) fileCompleted(name string, bytes int64) {
	s.mut.Lock()
	s.completed = append(s.completed, name)
	s.bytes += bytes
	s.mut.Unlock()
}

func (s *Session) fileFailed(name, reason string) {
	s.mut.Lock()
	s.failed[name] = reason
	s.mut.Unlock()
}

func (s *Session) fileDeleted() {
	s.mut.Lock()
	s.deleted++
	s.mut.Unlock()
}

func (s *Session) failedCount() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return len(s.failed)
}
