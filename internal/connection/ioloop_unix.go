// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

package connection

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// idlePollTimeoutMillis mirrors network.py's select.select(..., 0.25): the
// loop wakes at least this often even with no readiness events, so it can
// notice context cancellation and newly added connections promptly.
const idlePollTimeoutMillis = 250

// ioLoop is the single-threaded readiness loop that services every
// connection a Manager owns, using unix.Poll as the direct analogue of
// the original plugin's select.select() call in NetworkThread.run.
type ioLoop struct {
	mgr *Manager
}

func newIOLoop(mgr *Manager) *ioLoop {
	return &ioLoop{mgr: mgr}
}

func (loop *ioLoop) run(ctx context.Context) error {
	l.Infoln("I/O loop starting")
	defer l.Infoln("I/O loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conns := loop.mgr.snapshot()
		if len(conns) == 0 {
			time.Sleep(idlePollTimeoutMillis * time.Millisecond)
			continue
		}

		pollfds := make([]unix.PollFd, 0, len(conns))
		polled := make([]*Connection, 0, len(conns))
		for _, c := range conns {
			if c.fileDescriptor() < 0 {
				continue
			}
			var events int16
			if c.State() == ConnectedState {
				events |= unix.POLLIN
			}
			if c.isWriteable() {
				events |= unix.POLLOUT
			}
			pollfds = append(pollfds, unix.PollFd{Fd: int32(c.fileDescriptor()), Events: events})
			polled = append(polled, c)
		}

		if len(pollfds) == 0 {
			time.Sleep(idlePollTimeoutMillis * time.Millisecond)
			continue
		}

		n, err := unix.Poll(pollfds, idlePollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			l.Warnf("poll failed: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		for i, pfd := range pollfds {
			if pfd.Revents == 0 {
				continue
			}
			c := polled[i]
			if c.State() == ConnectingState {
				// A pending connect is resolved only by handleWritable's
				// SO_ERROR check, so a refused connect (which also reports
				// POLLERR/POLLHUP) raises ConnectionFailed, not RecvError.
				c.handleWritable()
				continue
			}
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				c.handleReadable()
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				c.handleWritable()
			}
		}
	}
}
