// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package syncutil wraps the standard library's locking primitives with
// optional hold-time logging, in the same spirit as the teacher's lib/sync
// package: production code always programs against the Mutex/RWMutex/
// WaitGroup interfaces here, and a debug build (RB_TRACE=sync) gets a
// warning logged whenever a critical section is held longer than
// threshold.
package syncutil

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/OdatNurd/remotebuild/internal/logger"
)

var (
	l         = logger.L.NewFacility("sync", "critical section timing")
	debug     = false
	threshold = 100 * time.Millisecond
)

func init() {
	debug = l.IsEnabledFor("sync", logger.LevelDebug)
}

// Mutex is the interface satisfied by both sync.Mutex and the logging
// wrapper below.
type Mutex interface {
	Lock()
	Unlock()
}

// RWMutex is the interface satisfied by both sync.RWMutex and the logging
// wrapper below.
type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

// WaitGroup is the interface satisfied by both sync.WaitGroup and the
// logging wrapper below.
type WaitGroup interface {
	Add(delta int)
	Done()
	Wait()
}

// NewMutex returns a sync.Mutex, or a logging-instrumented equivalent when
// the "sync" facility is enabled for debug output.
func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

// NewRWMutex returns a sync.RWMutex, or a logging-instrumented equivalent.
func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{}
	}
	return &sync.RWMutex{}
}

// NewWaitGroup returns a sync.WaitGroup, or a logging-instrumented
// equivalent.
func NewWaitGroup() WaitGroup {
	if debug {
		return &loggedWaitGroup{}
	}
	return &sync.WaitGroup{}
}

type loggedMutex struct {
	sync.Mutex
	start time.Time
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.start = time.Now()
}

func (m *loggedMutex) Unlock() {
	duration := time.Since(m.start)
	if duration > threshold {
		l.Debugf("Mutex held for %v\n%s", duration, caller())
	}
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	sync.RWMutex
	start     time.Time
	unlockers int32
}

func (m *loggedRWMutex) Lock() {
	start := time.Now()
	m.RWMutex.Lock()
	m.start = time.Now()
	if d := time.Since(start); d > threshold && m.unlockers > 0 {
		l.Debugf("Blocked on RUnlockers while locking:\n%s", caller())
	}
}

func (m *loggedRWMutex) Unlock() {
	duration := time.Since(m.start)
	if duration > threshold {
		l.Debugf("RWMutex held for %v\n%s", duration, caller())
	}
	m.RWMutex.Unlock()
}

func (m *loggedRWMutex) RLock() {
	m.RWMutex.RLock()
}

func (m *loggedRWMutex) RUnlock() {
	m.RWMutex.RUnlock()
}

type loggedWaitGroup struct {
	sync.WaitGroup
	start time.Time
}

func (wg *loggedWaitGroup) Add(delta int) {
	if delta > 0 {
		wg.start = time.Now()
	}
	wg.WaitGroup.Add(delta)
}

func (wg *loggedWaitGroup) Wait() {
	wg.WaitGroup.Wait()
	if duration := time.Since(wg.start); duration > threshold {
		l.Debugf("WaitGroup waited %v\n%s", duration, caller())
	}
}

func caller() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "at unknown location"
	}
	return fmt.Sprintf("at %s:%d", file, line)
}
