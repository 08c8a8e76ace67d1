// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sync provides mutexes and wait groups that can log slow lock
// acquisitions and long hold times when debugging is enabled.
package sync

import (
	"runtime"
	"strconv"
	"sync"
	"time"
)

type Mutex interface {
	Lock()
	Unlock()
}

type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

type WaitGroup interface {
	Add(int)
	Done()
	Wait()
}

func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{
			unlockers: make(chan holder, 1024),
		}
	}
	return &sync.RWMutex{}
}

func NewWaitGroup() WaitGroup {
	if debug {
		return &loggedWaitGroup{}
	}
	return &sync.WaitGroup{}
}

type holder struct {
	at   string
	time time.Time
	goid int
}

type loggedMutex struct {
	sync.Mutex
	holder holder
}

func (m *loggedMutex) Lock() {
	start := time.Now()
	m.Mutex.Lock()
	if wait := time.Since(start); wait > threshold {
		l.Debugf("Mutex took %v to lock. Locked at %s. Unlocked at %s.", wait, getHolder().at, m.holder.at)
	}
	m.holder = getHolder()
}

func (m *loggedMutex) Unlock() {
	if held := time.Since(m.holder.time); held > threshold {
		l.Debugf("Mutex held for %v. Locked at %s: %s", held, m.holder.at, getHolder().at)
	}
	m.holder = holder{}
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	sync.RWMutex
	holder    holder
	unlockers chan holder
}

func (m *loggedRWMutex) Lock() {
	start := time.Now()

	m.RWMutex.Lock()

	m.holder = getHolder()

	if wait := time.Since(start); wait > threshold {
		var unlockerStrings string
	loop:
		for {
			select {
			case holder := <-m.unlockers:
				unlockerStrings += "\n" + holder.at
			default:
				break loop
			}
		}
		l.Debugf("RWMutex took %v to lock. Locked at %s. RUnlockers while locking:%s", wait, m.holder.at, unlockerStrings)
	}
}

func (m *loggedRWMutex) Unlock() {
	if held := time.Since(m.holder.time); held > threshold {
		l.Debugf("RWMutex held for %v. Locked at %s: %s", held, m.holder.at, getHolder().at)
	}
	m.holder = holder{}
	m.RWMutex.Unlock()
}

func (m *loggedRWMutex) RUnlock() {
	select {
	case m.unlockers <- getHolder():
	default:
	}
	m.RWMutex.RUnlock()
}

type loggedWaitGroup struct {
	sync.WaitGroup
}

func (wg *loggedWaitGroup) Wait() {
	start := time.Now()
	wg.WaitGroup.Wait()
	if wait := time.Since(start); wait > threshold {
		l.Debugf("WaitGroup took %v at %s", wait, getHolder().at)
	}
}

func getHolder() holder {
	_, file, line, _ := runtime.Caller(2)
	return holder{
		at:   shortFile(file, line),
		time: time.Now(),
	}
}

func shortFile(file string, line int) string {
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return short + ":" + strconv.Itoa(line)
}
