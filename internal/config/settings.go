// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config loads the settings bag a remote build client needs:
// the configured build hosts and the host-wide file/folder exclude
// patterns merged into every folder's own filters. Grounded on
// lib/config (YAML via sigs.k8s.io/yaml, the teacher's direct
// dependency) and cmd/syncthing/locations.go for resolving the file's
// default path.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// BuildHost is one entry in build_hosts: a remote build server this
// client can dial, and the credentials to authenticate with it.
type BuildHost struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// MaskedPassword returns a display-safe version of the host entry's
// password, for the connection-selection UX (spec.md's "Supplemented
// features"): never show the plaintext back to the user once it has
// been read from disk.
func (h BuildHost) MaskedPassword() string {
	if h.Password == "" {
		return ""
	}
	return "********"
}

// Settings is the full settings bag consumed by a remote build client,
// equivalent to the host-supplied "settings" argument spec.md §6
// describes, loaded here from a YAML file rather than handed in by an
// embedding editor.
type Settings struct {
	BuildHosts            []BuildHost `json:"build_hosts"`
	DefaultFileExcludes   []string    `json:"file_exclude_patterns"`
	DefaultFolderExcludes []string    `json:"folder_exclude_patterns"`
}

// Load reads and parses a settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &s, nil
}

// FindHost looks up a configured build host by name.
func (s *Settings) FindHost(name string) (BuildHost, bool) {
	for _, h := range s.BuildHosts {
		if h.Name == name {
			return h, true
		}
	}
	return BuildHost{}, false
}
