// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fileset

import (
	"os"
	"path/filepath"
)

// GatherProject gathers every configured folder, merges in the
// host-wide default excludes, and coalesces nested roots into their
// parents, producing the single ProjectSnapshot the delta engine
// compares between two ends of a connection.
func GatherProject(specs []FolderSpec, projectPath string, defaultFileExcludes, defaultFolderExcludes []string, hashFiles bool, cache *HashCache) (ProjectSnapshot, error) {
	snapshot := ProjectSnapshot{}
	for _, spec := range specs {
		root, files, err := Gather(spec, projectPath, defaultFileExcludes, defaultFolderExcludes, hashFiles, cache)
		if err != nil {
			return nil, err
		}
		snapshot[root] = files
	}
	return Coalesce(snapshot), nil
}

// GatherSingleFile builds a one-file ProjectSnapshot rooted at path's
// containing directory, the empty-folder fallback spec.md §4.6
// describes: when no folders are configured at all, fall back to
// whatever single file the caller names (the active editor view, in the
// original plugin), the same as find_project_files does when folders is
// empty.
func GatherSingleFile(path string, hashFile bool, cache *HashCache) (ProjectSnapshot, error) {
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	rec, err := recordFor(dir, name, hashFile, cache)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		rec = FileRecord{Name: name}
	}

	return ProjectSnapshot{
		dir: FolderSnapshot{name: rec},
	}, nil
}
