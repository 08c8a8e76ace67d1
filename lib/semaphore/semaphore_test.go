// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package semaphore

import (
	"context"
	"testing"
	"time"
)

func TestTakeGive(t *testing.T) {
	s := New(2)
	s.Take(1)
	s.Take(1)
	if s.Available() != 0 {
		t.Errorf("expected 0 available, got %d", s.Available())
	}
	s.Give(1)
	if s.Available() != 1 {
		t.Errorf("expected 1 available, got %d", s.Available())
	}
	s.Give(1)
}

func TestTakeWithContextCancelled(t *testing.T) {
	s := New(1)
	s.Take(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.TakeWithContext(ctx, 1); err == nil {
		t.Error("expected error when capacity exhausted and context times out")
	}
	s.Give(1)
}

func TestTakeBlocksUntilGive(t *testing.T) {
	s := New(1)
	s.Take(1)

	got := make(chan struct{})
	go func() {
		s.Take(1)
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("take should have blocked")
	case <-time.After(10 * time.Millisecond):
	}

	s.Give(1)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("take did not proceed after give")
	}
}

func TestSetCapacity(t *testing.T) {
	s := New(1)
	s.Take(1)
	s.SetCapacity(2)
	if s.Available() != 1 {
		t.Errorf("expected 1 available after capacity increase, got %d", s.Available())
	}
	s.Give(1)
}
