// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fileset

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OdatNurd/remotebuild/internal/logger"
)

var l = logger.L.NewFacility("fileset", "project file gathering")

const hashChunkSize = 256 * 1024

// FolderSpec is one configured build folder: a root path plus its own
// include/exclude patterns, mirroring the "folders" entries the original
// plugin read out of a Sublime project file.
type FolderSpec struct {
	Path                  string
	FileIncludePatterns   []string
	FileExcludePatterns   []string
	FolderIncludePatterns []string
	FolderExcludePatterns []string
}

// HashCache memoizes (path, size, mtime) -> hex SHA-1 so a file that has
// not changed since the last Gather in this process is not re-read and
// re-hashed, the way a long-running build client's repeated pre-build
// scans otherwise would.
type HashCache struct {
	cache *lru.Cache[string, string]
}

// NewHashCache creates a HashCache holding up to size entries.
func NewHashCache(size int) (*HashCache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &HashCache{cache: c}, nil
}

func (h *HashCache) key(path string, size int64, mtime float64) string {
	return fmt.Sprintf("%s:%d:%f", path, size, mtime)
}

// Gather walks spec's resolved root and returns the root path actually
// searched along with the snapshot of files found there, filtered by
// spec's own patterns plus the host-wide defaults.
func Gather(spec FolderSpec, projectPath string, defaultFileExcludes, defaultFolderExcludes []string, hashFiles bool, cache *HashCache) (string, FolderSnapshot, error) {
	root, err := resolveFolderPath(spec.Path, projectPath)
	if err != nil {
		return "", nil, err
	}

	filter, err := NewFilterSpec(spec.FileIncludePatterns, spec.FileExcludePatterns,
		spec.FolderIncludePatterns, spec.FolderExcludePatterns,
		defaultFileExcludes, defaultFolderExcludes)
	if err != nil {
		return "", nil, err
	}

	snapshot := FolderSnapshot{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.Warnf("skipping %s: %v", path, err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if !filter.KeepFolder(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.KeepFile(rel) {
			return nil
		}

		rec, recErr := recordFor(root, rel, hashFiles, cache)
		if recErr != nil {
			l.Warnf("unreadable file %s: %v", path, recErr)
			rec = FileRecord{Name: rel}
		}
		snapshot[rel] = rec
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return root, snapshot, nil
}

func resolveFolderPath(path, projectPath string) (string, error) {
	if path == "" {
		return "", ErrBadFolderSpec
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if projectPath == "" {
		return "", fmt.Errorf("%w: relative path %q with no project root", ErrBadFolderSpec, path)
	}
	return filepath.Abs(filepath.Join(projectPath, path))
}

func recordFor(root, relName string, hashFile bool, cache *HashCache) (FileRecord, error) {
	full := filepath.Join(root, relName)
	info, err := os.Stat(full)
	if err != nil {
		return FileRecord{Name: relName}, err
	}

	mtime := float64(info.ModTime().UnixNano()) / 1e9
	rec := FileRecord{Name: relName, LastModified: mtime}
	if !hashFile {
		return rec, nil
	}

	var cacheKey string
	if cache != nil {
		cacheKey = cache.key(full, info.Size(), mtime)
		if hash, ok := cache.cache.Get(cacheKey); ok {
			rec.SHA1 = &hash
			return rec, nil
		}
	}

	hash, err := hashFileContents(full)
	if err != nil {
		return FileRecord{Name: relName, LastModified: mtime}, err
	}
	rec.SHA1 = &hash
	if cache != nil {
		cache.cache.Add(cacheKey, hash)
	}
	return rec, nil
}

func hashFileContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
