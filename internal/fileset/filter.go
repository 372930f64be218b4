// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fileset

import "github.com/gobwas/glob"

// FilterSpec compiles the include/exclude glob patterns a folder (and
// the host-wide defaults merged into it) carries. Filters apply in the
// order "include, exclude": with no includes, everything passes the
// include stage by default; an exclude match always wins.
type FilterSpec struct {
	fileIncludes   []glob.Glob
	fileExcludes   []glob.Glob
	folderIncludes []glob.Glob
	folderExcludes []glob.Glob
}

// NewFilterSpec compiles the four pattern lists. defaultFileExcludes and
// defaultFolderExcludes are the host-wide excludes (spec.md §4.6's
// "Global exclude merging") appended to the folder's own exclude lists.
func NewFilterSpec(fileIncludes, fileExcludes, folderIncludes, folderExcludes,
	defaultFileExcludes, defaultFolderExcludes []string) (FilterSpec, error) {

	fs := FilterSpec{}
	var err error
	if fs.fileIncludes, err = compileAll(fileIncludes); err != nil {
		return FilterSpec{}, err
	}
	if fs.fileExcludes, err = compileAll(append(append([]string{}, fileExcludes...), defaultFileExcludes...)); err != nil {
		return FilterSpec{}, err
	}
	if fs.folderIncludes, err = compileAll(folderIncludes); err != nil {
		return FilterSpec{}, err
	}
	if fs.folderExcludes, err = compileAll(append(append([]string{}, folderExcludes...), defaultFolderExcludes...)); err != nil {
		return FilterSpec{}, err
	}
	return fs, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// KeepFile reports whether a root-relative file name passes this
// folder's include/exclude filters, mirroring file_gather.py's _keep.
func (fs FilterSpec) KeepFile(name string) bool {
	return listMatch(fs.fileIncludes, name, true) && !listMatch(fs.fileExcludes, name, false)
}

// KeepFolder reports whether a directory name encountered while walking
// should be descended into, mirroring file_gather.py's _prune_folders
// (applied per entry rather than batched, for a cleaner filepath.Walk
// integration).
func (fs FilterSpec) KeepFolder(name string) bool {
	return listMatch(fs.folderIncludes, name, true) && !listMatch(fs.folderExcludes, name, false)
}

func listMatch(patterns []glob.Glob, name string, defaultIfEmpty bool) bool {
	if len(patterns) == 0 {
		return defaultIfEmpty
	}
	for _, g := range patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
