// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fileset walks a project's configured folders and builds a
// deterministic snapshot of the files found there: name, modification
// time, and content hash. It is grounded on the original plugin's
// file_gather.py, reimplemented against gobwas/glob instead of fnmatch
// and with an LRU hash cache instead of rehashing every file on every
// call.
package fileset

import (
	"errors"
	"sort"
)

// ErrBadFolderSpec is returned when a FolderSpec's path cannot be
// resolved: a relative path with no project root to resolve it against.
var ErrBadFolderSpec = errors.New("fileset: folder entry has no usable path")

// FileRecord describes one file's identity within a folder snapshot.
// SHA1 is nil when hashing was disabled or the file could not be read (permission error,
// vanished between listing and hashing, etc.) — spec.md §4.6/§7 treats
// this as FileUnreadable, a recorded fact, never a returned error.
type FileRecord struct {
	Name         string  // path relative to the folder root
	LastModified float64 // modification time, seconds since epoch
	SHA1         *string // nil when unreadable
}

// FolderSnapshot maps a file's root-relative name to its record.
type FolderSnapshot map[string]FileRecord

// ProjectSnapshot maps a folder's root path to the snapshot of files
// found under it.
type ProjectSnapshot map[string]FolderSnapshot

// SortedFolders returns the snapshot's folder root paths sorted by
// (dirname, basename), matching the original's get_folders key and the
// delta engine's iteration order.
func (p ProjectSnapshot) SortedFolders() []string {
	return sortedPaths(folderKeys(p))
}

func folderKeys(p ProjectSnapshot) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// SortedNames returns a folder snapshot's file names sorted by
// (dirname, basename).
func (f FolderSnapshot) SortedNames() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return sortedPaths(keys)
}

func sortedPaths(paths []string) []string {
	sort.Slice(paths, func(i, j int) bool {
		di, bi := splitDirBase(paths[i])
		dj, bj := splitDirBase(paths[j])
		if di != dj {
			return di < dj
		}
		return bi < bj
	})
	return paths
}
