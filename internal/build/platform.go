// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package build

import "runtime"

// platformName reports the platform string carried in Introduction's
// 8-byte platform field; GOOS values (linux, darwin, windows, ...) fit
// within it, and the one longer value (dragonfly) is cut to 8 bytes.
func platformName() string {
	name := runtime.GOOS
	if len(name) > 8 {
		name = name[:8]
	}
	return name
}
