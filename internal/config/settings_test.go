// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
build_hosts:
  - name: ci-box
    host: 10.0.0.5
    port: 9187
    username: dev
    password: s3cret
  - name: laptop
    host: 192.168.1.10
    port: 9187
    username: dev
file_exclude_patterns:
  - "*.o"
  - "*.pyc"
folder_exclude_patterns:
  - ".git"
  - "node_modules"
`

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(s.BuildHosts) != 2 {
		t.Fatalf("expected 2 build hosts, got %d", len(s.BuildHosts))
	}
	if s.BuildHosts[0].Name != "ci-box" || s.BuildHosts[0].Port != 9187 {
		t.Errorf("unexpected first host: %+v", s.BuildHosts[0])
	}
	if len(s.DefaultFileExcludes) != 2 || len(s.DefaultFolderExcludes) != 2 {
		t.Errorf("unexpected excludes: %+v / %+v", s.DefaultFileExcludes, s.DefaultFolderExcludes)
	}
}

func TestFindHost(t *testing.T) {
	s := &Settings{BuildHosts: []BuildHost{
		{Name: "ci-box", Host: "10.0.0.5"},
		{Name: "laptop", Host: "192.168.1.10"},
	}}

	h, ok := s.FindHost("laptop")
	if !ok || h.Host != "192.168.1.10" {
		t.Errorf("expected to find laptop, got %+v ok=%v", h, ok)
	}

	if _, ok := s.FindHost("nope"); ok {
		t.Error("expected not to find an unconfigured host")
	}
}

func TestMaskedPassword(t *testing.T) {
	withPw := BuildHost{Password: "s3cret"}
	if withPw.MaskedPassword() != "********" {
		t.Errorf("expected masked password, got %q", withPw.MaskedPassword())
	}

	noPw := BuildHost{}
	if noPw.MaskedPassword() != "" {
		t.Errorf("expected empty string for no password, got %q", noPw.MaskedPassword())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing settings file")
	}
}
