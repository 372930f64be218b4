// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package connection

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/OdatNurd/remotebuild/internal/logger"
	"github.com/OdatNurd/remotebuild/internal/protocol"
	"github.com/OdatNurd/remotebuild/internal/syncutil"
)

var l = logger.L.NewFacility("connection", "connection engine and I/O loop")

// State tracks a Connection's position in its lifecycle. It only ever
// moves forward: Created -> Connecting -> Connected -> Closed, or
// Created -> Connecting -> Closed if the connect attempt fails.
type State int

const (
	Created State = iota
	ConnectingState
	ConnectedState
	ClosedState
)

// Sentinel errors surfaced by this package, per spec.md §7.
var (
	ErrConnectFailed = errors.New("connection: connect attempt failed")
	ErrSendFailed    = errors.New("connection: send failed")
	ErrRecvFailed    = errors.New("connection: receive failed")
	ErrClosed        = errors.New("connection: use of closed connection")
)

const maxWritesPerReadyEvent = 10
const recvBufferSize = 4096

// Connection wraps one outbound TCP socket to a build host. It is
// entirely driven by the owning Manager's I/O loop; callers only ever
// queue outbound messages with Send and drain inbound ones with Receive,
// and are told about state transitions through the Callback supplied to
// Manager.Connect.
type Connection struct {
	mgr      *Manager
	host     string
	port     int
	callback Callback

	fd    int
	state State

	sendMu    syncutil.Mutex
	sendQueue [][]byte
	sendData  []byte

	recvMu      syncutil.Mutex
	recvQueue   []protocol.Message
	reassembler protocol.Reassembler
}

func newConnection(mgr *Manager, host string, port int, fd int, callback Callback) *Connection {
	return &Connection{
		mgr:      mgr,
		host:     host,
		port:     port,
		callback: callback,
		fd:       fd,
		state:    ConnectingState,
		sendMu:   syncutil.NewMutex(),
		recvMu:   syncutil.NewMutex(),
	}
}

// Host returns the remote host this connection was dialed to.
func (c *Connection) Host() string { return c.host }

// Port returns the remote port this connection was dialed to.
func (c *Connection) Port() int { return c.port }

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return c.state }

// Send queues m for transmission. It is safe to call from any goroutine;
// the actual write happens on the owning Manager's I/O loop.
func (c *Connection) Send(m protocol.Message) {
	framed := protocol.Frame(protocol.Encode(m))
	c.sendMu.Lock()
	c.sendQueue = append(c.sendQueue, framed)
	c.sendMu.Unlock()
}

// Receive pops the oldest fully-decoded message received on this
// connection, if any is available.
func (c *Connection) Receive() (protocol.Message, bool) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	if len(c.recvQueue) == 0 {
		return nil, false
	}
	m := c.recvQueue[0]
	c.recvQueue = c.recvQueue[1:]
	return m, true
}

// Close shuts the connection down and removes it from its manager. It is
// idempotent; calling it more than once, or on an already-closed
// connection, is a no-op.
func (c *Connection) Close() {
	c.mgr.remove(c)
}

func (c *Connection) String() string {
	c.sendMu.Lock()
	out := len(c.sendQueue)
	c.sendMu.Unlock()
	c.recvMu.Lock()
	in := len(c.recvQueue)
	c.recvMu.Unlock()
	return fmt.Sprintf("<Connection host=%s:%d fd=%d out=%d in=%d state=%v>",
		c.host, c.port, c.fd, out, in, c.state)
}

// raise posts n to the owning Manager's dispatch queue. It never calls
// c.callback itself: that happens later, on the Manager's dispatch
// goroutine, so the I/O loop goroutine that (usually) calls raise is
// never the one running observer code.
func (c *Connection) raise(n Notification) {
	l.Debugf("%v: %v", c, n)
	c.mgr.dispatch(c, n)
}

// isWriteable mirrors the original plugin's Connection._is_writeable:
// the poller only needs to know about write-readiness while the
// connect() is still pending, or while there is queued or partially
// sent outbound data.
func (c *Connection) isWriteable() bool {
	if c.fd < 0 {
		return false
	}
	if c.state == ConnectingState {
		return true
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return len(c.sendQueue) > 0 || c.sendData != nil
}

func (c *Connection) fileDescriptor() int {
	return c.fd
}

// takeSendTokens reports how many of the first `want` bytes a writable
// handler may send right now. It is the non-blocking counterpart of
// relaysrv's take(): rather than sleeping until tokens are available, it
// caps the write to whatever the limiter's burst currently allows and
// leaves the rest queued for the next writable event.
func takeSendTokens(limiter *rate.Limiter, want int) int {
	if limiter == nil {
		return want
	}
	if burst := limiter.Burst(); want > burst {
		want = burst
	}
	if want == 0 {
		return 0
	}
	if limiter.AllowN(time.Now(), want) {
		return want
	}
	return 0
}
