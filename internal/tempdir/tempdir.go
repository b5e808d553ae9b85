// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tempdir provides scoped temporary working directories.
package tempdir

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	namePrefix = "repack-workdir-"
	dirMode    = 0o700
)

// Dir is a temporary directory exclusively owned by its creator.
type Dir struct {
	path string
}

// New creates a new uniquely named directory in parent. If parent is the
// empty string, the default directory as returned by [os.TempDir] is used.
//
// The caller must call [Dir.Remove] once the directory is not needed anymore.
func New(parent string) (*Dir, error) {
	if parent == "" {
		parent = os.TempDir()
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate name: %w", err)
	}

	path := filepath.Join(parent, namePrefix+id.String())

	err = os.Mkdir(path, dirMode)
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	slog.Debug("Temp dir created", slog.String("path", path))

	return &Dir{path: path}, nil
}

// Path returns the path of the directory.
func (d *Dir) Path() string {
	return d.path
}

// Join returns the path of the given elements within the directory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Remove removes the directory with all its content. A failure is logged as
// warning only.
func (d *Dir) Remove() {
	slog.Debug("Remove temp dir", slog.String("path", d.path))

	err := os.RemoveAll(d.path)
	if err != nil {
		slog.Warn("Failed to remove temp dir",
			slog.String("path", d.path),
			slog.Any("error", err),
		)
	}
}

// With creates a new temporary directory, calls fn with it and removes the
// directory afterwards, no matter whether fn succeeds.
func With(fn func(dir *Dir) error) error {
	dir, err := New("")
	if err != nil {
		return err
	}
	defer dir.Remove()

	return fn(dir)
}
