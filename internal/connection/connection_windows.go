// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build windows

package connection

import "errors"

// ErrUnsupportedPlatform is returned by dial on platforms where the
// unix.Poll-based I/O loop has no equivalent yet. windows would need a
// WSAPoll-based ioLoop parallel to ioloop_unix.go; nothing in this
// project currently exercises it, so it is left unimplemented rather
// than guessed at.
var ErrUnsupportedPlatform = errors.New("connection: non-unix platforms are not yet supported")

func dial(host string, port int) (fd int, err error) {
	return -1, ErrUnsupportedPlatform
}

func (c *Connection) handleWritable() {}

func (c *Connection) handleReadable() {}

func closeFD(fd int) {}

func addrString(host string, port int) string { return host }
