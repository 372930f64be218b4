// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"sort"
)

// MakeBuildID derives the build identifier carried by SetBuild: the hex
// SHA-1 of the UTF-8 concatenation of folders, sorted by (dirname,
// basename), with no separators between them. It is pure and
// deterministic regardless of the order folders is supplied in.
func MakeBuildID(folders []string) string {
	sorted := make([]string, len(folders))
	copy(sorted, folders)
	sort.Slice(sorted, func(i, j int) bool {
		di, bi := filepath.Dir(sorted[i]), filepath.Base(sorted[i])
		dj, bj := filepath.Dir(sorted[j]), filepath.Base(sorted[j])
		if di != dj {
			return di < dj
		}
		return bi < bj
	})

	h := sha1.New()
	for _, f := range sorted {
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
