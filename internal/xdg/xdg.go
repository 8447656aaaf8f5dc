// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package xdg resolves Dikser's XDG Base Directory locations.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "dikser"

// ConfigFileName is the file looked up in ConfigDir when no --config flag is
// given.
const ConfigFileName = "config.yaml"

// ConfigDir returns the config directory, honouring XDG_CONFIG_HOME and
// falling back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
