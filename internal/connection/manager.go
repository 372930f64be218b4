// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package connection

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/OdatNurd/remotebuild/internal/syncutil"
)

// notifyQueueSize bounds the Manager's notification dispatch queue.
// Notifications are small and callbacks are expected to return quickly,
// so a generous buffer is only there to absorb bursts (e.g. a flurry of
// Message notifications while a callback is briefly busy) without the
// I/O loop goroutine blocking on the send.
const notifyQueueSize = 256

type notificationEvent struct {
	c *Connection
	n Notification
}

// Manager owns every live Connection and the single I/O loop that
// services them all. There should be exactly one Manager per process;
// it is the Go counterpart of network.py's ConnectionManager.
type Manager struct {
	mu          syncutil.Mutex
	connections []*Connection
	loop        *ioLoop
	metrics     *connMetrics
	sendLimiter *rate.Limiter
	notifyCh    chan notificationEvent
}

// NewManager creates a Manager and its I/O loop. Serve must be called
// (typically under a suture.Supervisor) to actually service connections.
func NewManager() *Manager {
	m := &Manager{
		mu:       syncutil.NewMutex(),
		metrics:  newConnMetrics(),
		notifyCh: make(chan notificationEvent, notifyQueueSize),
	}
	m.loop = newIOLoop(m)
	return m
}

// dispatch posts a notification for later delivery. It is safe to call
// from the I/O loop goroutine: the send only blocks if notifyQueueSize
// callbacks are already backlogged, which a well-behaved Callback never
// approaches.
func (m *Manager) dispatch(c *Connection, n Notification) {
	m.notifyCh <- notificationEvent{c: c, n: n}
}

// dispatchLoop is the single goroutine that ever invokes a Connection's
// Callback, the Go counterpart of the original plugin's
// sublime.set_timeout hop onto Sublime's main thread. Draining one
// channel in FIFO order preserves the per-connection ordering raise
// callers rely on, since every raise for a given connection already
// comes from a single serialized source (the I/O loop, or a Manager
// method called while holding no lock the loop needs).
func (m *Manager) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.notifyCh:
			if ev.c.callback != nil {
				ev.c.callback(ev.c, ev.n)
			}
		}
	}
}

// SetSendLimit caps aggregate outbound throughput across every
// connection this Manager owns to bytesPerSecond, with a burst of
// burstBytes, the same rate.Limiter this pack's relaysrv uses to pace
// session traffic. A nil limiter (the default) disables pacing.
func (m *Manager) SetSendLimit(bytesPerSecond float64, burstBytes int) {
	if bytesPerSecond <= 0 {
		m.sendLimiter = nil
		return
	}
	m.sendLimiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burstBytes)
}

// Serve runs the I/O loop, and its notification dispatch goroutine,
// until ctx is cancelled. It satisfies suture.Service so the manager
// can be supervised like any other long-running process component.
func (m *Manager) Serve(ctx context.Context) error {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go m.dispatchLoop(dctx)
	return m.loop.run(ctx)
}

// Connect begins an asynchronous connection to host:port. The returned
// Connection is in the Connecting state; callback is invoked (in strict
// per-connection order) as its lifecycle advances, ending in exactly one
// Closed notification.
func (m *Manager) Connect(host string, port int, callback Callback) (*Connection, error) {
	fd, err := dial(host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %s:%d: %v", ErrConnectFailed, host, port, err)
	}

	c := newConnection(m, host, port, fd, callback)

	m.mu.Lock()
	m.connections = append(m.connections, c)
	m.mu.Unlock()

	m.metrics.connectionsOpened.Inc()
	m.metrics.connectionsActive.Inc()
	c.raise(Connecting)
	return c, nil
}

// FindConnections returns every currently tracked connection matching
// the given host and/or port; either may be left zero/empty to match
// any value for that field.
func (m *Manager) FindConnections(host string, port int) []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Connection
	for _, c := range m.connections {
		if host != "" && c.host != host {
			continue
		}
		if port != 0 && c.port != port {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Shutdown closes every tracked connection. The I/O loop itself is
// stopped by cancelling the context passed to Serve.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	toClose := make([]*Connection, len(m.connections))
	copy(toClose, m.connections)
	m.mu.Unlock()

	for _, c := range toClose {
		m.remove(c)
	}
}

// snapshot returns the current connection list for the I/O loop to poll
// over, without holding the manager lock while it does.
func (m *Manager) snapshot() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Connection, len(m.connections))
	copy(out, m.connections)
	return out
}

func (m *Manager) remove(c *Connection) {
	m.mu.Lock()
	found := false
	filtered := m.connections[:0:0]
	for _, existing := range m.connections {
		if existing == c {
			found = true
			continue
		}
		filtered = append(filtered, existing)
	}
	m.connections = filtered
	m.mu.Unlock()

	if !found {
		return
	}

	closeFD(c.fd)
	c.fd = -1
	c.state = ClosedState
	m.metrics.connectionsActive.Dec()
	c.raise(Closed)
}
