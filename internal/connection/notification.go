// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connection implements the non-blocking connection engine:
// outbound TCP connections to a build host, serviced by a single I/O
// loop that selects on readiness the way the original plugin's
// network.py NetworkThread used select.select(), rather than a
// goroutine per connection. State changes are reported to the owner via
// a callback, in strictly ordered, per-connection notifications
// terminating in exactly one Closed.
package connection

import "fmt"

// Notification enumerates the lifecycle events a Connection raises.
type Notification int

const (
	// Closed indicates the connection was closed, gracefully or due to
	// an error. Exactly one Closed is ever raised per connection, and it
	// is always the last notification that connection raises.
	Closed Notification = iota

	// Connecting is raised once, synchronously, when the connection
	// attempt begins.
	Connecting

	// Connected is raised when a pending outbound connection attempt
	// succeeds.
	Connected

	// ConnectionFailed is raised when a pending outbound connection
	// attempt fails; it is always immediately followed by Closed.
	ConnectionFailed

	// SendError is raised when a write to the socket fails; it is
	// always immediately followed by Closed.
	SendError

	// RecvError is raised when a read from the socket fails; it is
	// always immediately followed by Closed.
	RecvError

	// Message is raised once per fully decoded message received; the
	// message itself is available from Connection.Receive.
	Message
)

func (n Notification) String() string {
	switch n {
	case Closed:
		return "Closed"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case ConnectionFailed:
		return "ConnectionFailed"
	case SendError:
		return "SendError"
	case RecvError:
		return "RecvError"
	case Message:
		return "Message"
	default:
		return fmt.Sprintf("Notification(%d)", int(n))
	}
}

// Callback is invoked, strictly in order and one at a time per
// connection, whenever a Connection's state changes. It is the Go
// counterpart of the original plugin's sublime.set_timeout hop off the
// select-loop thread: the Manager posts every notification to a
// dispatch queue drained by its own goroutine, so Callback never runs
// on the I/O loop goroutine itself, and is free to call back into a
// Connection (Send, Receive, Close) without blocking readiness
// handling for every other connection the Manager owns.
type Callback func(c *Connection, n Notification)
