// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package delta computes what must change on one end of a connection to
// bring its file set in line with the other's, grounded on the original
// plugin's file_gather.calculate_fileset_deltas.
package delta

import "github.com/OdatNurd/remotebuild/internal/fileset"

// FolderDelta is the {add, remove, modify} triple for one folder. The
// three maps are pairwise disjoint: no file name ever appears in more
// than one of them.
type FolderDelta struct {
	Add    fileset.FolderSnapshot
	Remove fileset.FolderSnapshot
	Modify fileset.FolderSnapshot
}

// Delta maps each affected folder root to its FolderDelta.
type Delta map[string]FolderDelta

// Compute returns the changes needed to bring them in line with us: a
// folder present in us but absent from them is entirely "add"; a folder
// present in them but absent from us is entirely "remove"; a folder
// present in both is diffed file-by-file by content hash. A nil hash on
// either side is treated conservatively as a modification, since an
// unreadable file's true content is unknown.
func Compute(us, them fileset.ProjectSnapshot) Delta {
	result := Delta{}

	for _, folder := range us.SortedFolders() {
		ourFiles := us[folder]
		theirFiles, known := them[folder]

		fd := FolderDelta{
			Add:    fileset.FolderSnapshot{},
			Remove: fileset.FolderSnapshot{},
			Modify: fileset.FolderSnapshot{},
		}

		if !known {
			for name, rec := range ourFiles {
				fd.Add[name] = rec
			}
			result[folder] = fd
			continue
		}

		for _, name := range ourFiles.SortedNames() {
			ourRec := ourFiles[name]
			theirRec, exists := theirFiles[name]
			switch {
			case !exists:
				fd.Add[name] = ourRec
			case !sameHash(ourRec, theirRec):
				fd.Modify[name] = ourRec
			}
		}
		for name, theirRec := range theirFiles {
			if _, exists := ourFiles[name]; !exists {
				fd.Remove[name] = theirRec
			}
		}

		result[folder] = fd
	}

	for folder, theirFiles := range them {
		if _, known := us[folder]; known {
			continue
		}
		result[folder] = FolderDelta{
			Add:    fileset.FolderSnapshot{},
			Remove: theirFiles,
			Modify: fileset.FolderSnapshot{},
		}
	}

	return result
}

// sameHash reports whether two records should be treated as identical
// content. A nil hash on either side (FileUnreadable) is conservatively
// treated as "different", per spec.md §4.7's edge case notes:
// modification-time-only differences are never by themselves a reason
// to report a modify.
func sameHash(a, b fileset.FileRecord) bool {
	if a.SHA1 == nil || b.SHA1 == nil {
		return false
	}
	return *a.SHA1 == *b.SHA1
}
