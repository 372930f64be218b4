// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build windows

package connection

import "context"

type ioLoop struct {
	mgr *Manager
}

func newIOLoop(mgr *Manager) *ioLoop {
	return &ioLoop{mgr: mgr}
}

func (loop *ioLoop) run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
