// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fileset

import (
	"path/filepath"
	"strings"
)

// Coalesce merges any folder snapshot whose root path is a strict
// path-prefix of another into that other folder's entry, renaming the
// absorbed files onto the prefix-relative path, so that no snapshot key
// is ever itself a prefix of another (spec.md §4.4's invariant). It
// mirrors file_gather.py's _coalesce_folders.
func Coalesce(folders ProjectSnapshot) ProjectSnapshot {
	coalesced := ProjectSnapshot{}

	for _, folder := range sortedPaths(folderKeys(folders)) {
		common := ""
		for _, fixed := range sortedPaths(folderKeys(coalesced)) {
			if pathHasPrefix(folder, fixed) {
				common = fixed
				break
			}
		}

		if common == "" {
			coalesced[folder] = folders[folder]
			continue
		}

		suffix := strings.TrimPrefix(folder[len(common):], string(filepath.Separator))
		dst := coalesced[common]
		for name, rec := range folders[folder] {
			newName := filepath.Join(suffix, name)
			rec.Name = newName
			dst[newName] = rec
		}
	}

	return coalesced
}

func pathHasPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
