// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

package connection

import (
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/OdatNurd/remotebuild/internal/protocol"
)

// dial opens a non-blocking socket and begins an asynchronous connect,
// the Go analogue of network.py's _open_connection: socket.setblocking
// (False) followed by a connect() that is expected to raise
// BlockingIOError (EINPROGRESS here) rather than complete immediately.
func dial(host string, port int) (fd int, err error) {
	addr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return -1, err
	}

	var family int
	var sa unix.Sockaddr
	if ip4 := addr.IP.To4(); ip4 != nil {
		family = unix.AF_INET
		var a [4]byte
		copy(a[:], ip4)
		sa = &unix.SockaddrInet4{Port: port, Addr: a}
	} else {
		family = unix.AF_INET6
		var a [16]byte
		copy(a[:], addr.IP.To16())
		sa = &unix.SockaddrInet6{Port: port, Addr: a}
	}

	fd, err = unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// handleWritable is invoked by the I/O loop when the poller reports this
// connection's fd as write-ready. It mirrors network.py's Connection._send.
func (c *Connection) handleWritable() {
	if c.fd < 0 {
		return
	}

	if c.state == ConnectingState {
		errno, gerr := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil || errno != 0 {
			l.Verbosef("%v: connect failed: errno=%d err=%v", c, errno, gerr)
			c.raise(ConnectionFailed)
			c.Close()
			return
		}
		c.state = ConnectedState
		c.raise(Connected)
	}

	for i := 0; i < maxWritesPerReadyEvent; i++ {
		c.sendMu.Lock()
		if c.sendData == nil {
			if len(c.sendQueue) == 0 {
				c.sendMu.Unlock()
				return
			}
			c.sendData = c.sendQueue[0]
			c.sendQueue = c.sendQueue[1:]
		}
		full := c.sendData
		c.sendMu.Unlock()

		data := full
		if allowed := takeSendTokens(c.mgr.sendLimiter, len(data)); allowed < len(data) {
			if allowed == 0 {
				return
			}
			data = data[:allowed]
		}

		n, err := unix.Write(c.fd, data)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			l.Verbosef("%v: send error: %v", c, err)
			c.raise(SendError)
			c.Close()
			return
		}
		c.mgr.metrics.bytesSent.Add(float64(n))

		c.sendMu.Lock()
		remaining := full[n:]
		if len(remaining) == 0 {
			c.sendData = nil
		} else {
			c.sendData = remaining
			c.sendMu.Unlock()
			return
		}
		c.sendMu.Unlock()
	}
}

// handleReadable is invoked by the I/O loop when the poller reports this
// connection's fd as read-ready. It mirrors network.py's Connection._receive.
func (c *Connection) handleReadable() {
	if c.fd < 0 {
		return
	}

	buf := make([]byte, recvBufferSize)
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		l.Verbosef("%v: receive error: %v", c, err)
		c.raise(RecvError)
		c.Close()
		return
	}
	if n == 0 {
		c.Close()
		return
	}
	c.mgr.metrics.bytesReceived.Add(float64(n))

	c.recvMu.Lock()
	c.reassembler.Feed(buf[:n])
	for {
		payload, ok, ferr := c.reassembler.Next()
		if ferr != nil {
			c.recvMu.Unlock()
			l.Verbosef("%v: framing error: %v", c, ferr)
			c.raise(RecvError)
			c.Close()
			return
		}
		if !ok {
			break
		}
		msg, derr := protocol.Decode(payload)
		if derr != nil {
			c.recvMu.Unlock()
			l.Verbosef("%v: decode error: %v", c, derr)
			c.raise(RecvError)
			c.Close()
			return
		}
		c.recvQueue = append(c.recvQueue, msg)
		c.mgr.metrics.messagesByKind.WithLabelValues(msg.Kind().String()).Inc()
		c.recvMu.Unlock()
		c.raise(Message)
		c.recvMu.Lock()
	}
	c.recvMu.Unlock()
}

func closeFD(fd int) {
	if fd >= 0 {
		unix.Shutdown(fd, unix.SHUT_RDWR)
		unix.Close(fd)
	}
}

func addrString(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
