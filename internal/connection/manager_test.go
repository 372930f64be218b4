// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package connection

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/OdatNurd/remotebuild/internal/protocol"
)

// listenLoopback stands up a real TCP listener on 127.0.0.1 and returns
// its host/port, following the pattern original_source's net_test and
// test_client.py use of a real socket rather than a mock.
func listenLoopback(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("failed to split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}
	return ln, host, port
}

type notificationRecorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *notificationRecorder) record(_ *Connection, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *notificationRecorder) snapshot() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerConnectAndExchangeMessage(t *testing.T) {
	ln, host, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	mgr := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Serve(ctx)

	rec := &notificationRecorder{}
	c, err := mgr.Connect(host, port, rec.record)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}
	defer server.Close()

	// Notifications arrive on the Manager's dispatch goroutine, after the
	// state change, so wait for them rather than for State().
	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) >= 2 })

	notifications := rec.snapshot()
	if len(notifications) < 2 || notifications[0] != Connecting || notifications[1] != Connected {
		t.Fatalf("expected [Connecting, Connected, ...], got %v", notifications)
	}

	wire := protocol.Frame(protocol.Encode(protocol.TextMessage{Text: "hello client"}))
	if _, err := server.Write(wire); err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		for _, n := range rec.snapshot() {
			if n == Message {
				return true
			}
		}
		return false
	})

	msg, ok := c.Receive()
	if !ok {
		t.Fatal("expected a received message")
	}
	tm, ok := msg.(protocol.TextMessage)
	if !ok || tm.Text != "hello client" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	c.Close()
	waitFor(t, 2*time.Second, func() bool {
		n := rec.snapshot()
		return len(n) > 0 && n[len(n)-1] == Closed
	})
}

func TestManagerSendLimitStillDeliversMessage(t *testing.T) {
	ln, host, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	mgr := NewManager()
	mgr.SetSendLimit(64<<10, 4096)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Serve(ctx)

	c, err := mgr.Connect(host, port, func(*Connection, Notification) {})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}
	defer server.Close()

	waitFor(t, 2*time.Second, func() bool { return c.State() == ConnectedState })

	c.Send(protocol.TextMessage{Text: "paced hello"})

	var reassembler protocol.Reassembler
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if payload, ok, err := reassembler.Next(); err == nil && ok {
			msg, derr := protocol.Decode(payload)
			if derr != nil {
				t.Fatalf("decode failed: %v", derr)
			}
			tm, ok := msg.(protocol.TextMessage)
			if !ok || tm.Text != "paced hello" {
				t.Fatalf("unexpected message: %+v", msg)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for paced message")
		}
		server.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := server.Read(buf)
		if err != nil {
			continue
		}
		reassembler.Feed(buf[:n])
	}
}

func TestManagerFindConnections(t *testing.T) {
	ln, host, port := listenLoopback(t)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	mgr := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Serve(ctx)

	c1, err := mgr.Connect(host, port, func(*Connection, Notification) {})
	if err != nil {
		t.Fatalf("connect 1 failed: %v", err)
	}
	c2, err := mgr.Connect(host, port, func(*Connection, Notification) {})
	if err != nil {
		t.Fatalf("connect 2 failed: %v", err)
	}

	found := mgr.FindConnections(host, port)
	if len(found) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(found))
	}

	mgr.Shutdown()
	waitFor(t, time.Second, func() bool {
		return c1.State() == ClosedState && c2.State() == ClosedState
	})

	if len(mgr.FindConnections(host, port)) != 0 {
		t.Error("expected no connections after Shutdown")
	}
}
