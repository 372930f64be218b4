// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package syncutil

import (
	"sync"
	"testing"
	"time"

	"github.com/OdatNurd/remotebuild/internal/logger"
)

const (
	shortWait = 5 * time.Millisecond
	longWait  = 60 * time.Millisecond
)

func TestTypesSwitchOnDebug(t *testing.T) {
	debug = false
	if _, ok := NewMutex().(*sync.Mutex); !ok {
		t.Error("expected plain *sync.Mutex when debug is off")
	}
	if _, ok := NewRWMutex().(*sync.RWMutex); !ok {
		t.Error("expected plain *sync.RWMutex when debug is off")
	}
	if _, ok := NewWaitGroup().(*sync.WaitGroup); !ok {
		t.Error("expected plain *sync.WaitGroup when debug is off")
	}

	debug = true
	if _, ok := NewMutex().(*loggedMutex); !ok {
		t.Error("expected *loggedMutex when debug is on")
	}
	if _, ok := NewRWMutex().(*loggedRWMutex); !ok {
		t.Error("expected *loggedRWMutex when debug is on")
	}
	if _, ok := NewWaitGroup().(*loggedWaitGroup); !ok {
		t.Error("expected *loggedWaitGroup when debug is on")
	}
	debug = false
}

func TestLoggedMutexWarnsPastThreshold(t *testing.T) {
	debug = true
	// debug is normally set only when the "sync" facility is enabled;
	// enable it too so the hold-time messages are not gated away.
	l.SetDebug("sync", true)
	threshold = 20 * time.Millisecond

	var mu sync.Mutex
	var messages []string
	l.AddHandler(logger.LevelDebug, func(_ logger.LogLevel, msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	})

	mut := NewMutex()
	mut.Lock()
	time.Sleep(shortWait)
	mut.Unlock()

	mu.Lock()
	shortCount := len(messages)
	mu.Unlock()
	if shortCount != 0 {
		t.Errorf("expected no warning for a short hold, got %d", shortCount)
	}

	mut.Lock()
	time.Sleep(longWait)
	mut.Unlock()

	mu.Lock()
	longCount := len(messages)
	mu.Unlock()
	if longCount != 1 {
		t.Errorf("expected one warning for a long hold, got %d", longCount)
	}

	debug = false
	threshold = 100 * time.Millisecond
}
