// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultPath resolves the settings file location the same way
// cmd/syncthing/locations.go resolves its config directory: an
// XDG_CONFIG_HOME override on Linux, the platform's conventional
// application-support directory elsewhere, falling back to
// $HOME/.config.
func DefaultPath() (string, error) {
	dir, err := defaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDir exposes the resolved config directory itself, for callers
// that need a place to drop other per-install state (panic logs, in
// main.go's case) alongside config.yaml.
func DefaultDir() (string, error) {
	return defaultConfigDir()
}

func defaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if p := os.Getenv("LocalAppData"); p != "" {
			return filepath.Join(p, "remotebuild"), nil
		}
		return filepath.Join(os.Getenv("AppData"), "remotebuild"), nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "remotebuild"), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "remotebuild"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "remotebuild"), nil
	}
}
