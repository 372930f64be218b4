// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package connection

import (
	"testing"

	"golang.org/x/time/rate"

	"github.com/OdatNurd/remotebuild/internal/syncutil"
)

func TestNotificationString(t *testing.T) {
	cases := map[Notification]string{
		Closed:           "Closed",
		Connecting:       "Connecting",
		Connected:        "Connected",
		ConnectionFailed: "ConnectionFailed",
		SendError:        "SendError",
		RecvError:        "RecvError",
		Message:          "Message",
	}
	for n, want := range cases {
		if got := n.String(); got != want {
			t.Errorf("Notification(%d).String() = %q, want %q", int(n), got, want)
		}
	}
}

func TestIsWriteableWithNoFD(t *testing.T) {
	c := &Connection{fd: -1, sendMu: syncutil.NewMutex()}
	if c.isWriteable() {
		t.Error("a connection with no fd should never be writeable")
	}
}

func TestIsWriteableWhileConnecting(t *testing.T) {
	c := &Connection{fd: 3, state: ConnectingState, sendMu: syncutil.NewMutex()}
	if !c.isWriteable() {
		t.Error("a pending connect must be writeable so the loop learns when it completes")
	}
}

func TestIsWriteableWithQueuedData(t *testing.T) {
	c := &Connection{fd: 3, state: ConnectedState, sendMu: syncutil.NewMutex()}
	if c.isWriteable() {
		t.Error("an idle connected connection with nothing queued should not be writeable")
	}

	c.sendQueue = append(c.sendQueue, []byte("hi"))
	if !c.isWriteable() {
		t.Error("a connection with queued data should be writeable")
	}
}

func TestTakeSendTokensWithNoLimiter(t *testing.T) {
	if got := takeSendTokens(nil, 1000); got != 1000 {
		t.Errorf("expected an unpaced connection to allow the full write, got %d", got)
	}
}

func TestTakeSendTokensCapsToBurst(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1<<20), 100)
	if got := takeSendTokens(limiter, 1000); got != 100 {
		t.Errorf("expected the write capped to the limiter's burst of 100, got %d", got)
	}
}

func TestTakeSendTokensExhaustedReturnsZero(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 10)
	if got := takeSendTokens(limiter, 10); got != 10 {
		t.Fatalf("expected the first call to consume the full burst, got %d", got)
	}
	if got := takeSendTokens(limiter, 10); got != 0 {
		t.Errorf("expected an exhausted limiter to allow nothing, got %d", got)
	}
}
