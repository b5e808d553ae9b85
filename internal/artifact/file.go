// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/hostfs"
	"github.com/aibor/repack/internal/memfs"
)

// FileArtifact is a set of files and directory trees on the host.
type FileArtifact struct {
	root  string
	paths []string
}

// NewFileArtifact returns the given host paths as artifact.
//
// If root is not empty, the paths are placed in the tree relative to root.
// Otherwise, absolute paths keep their location and relative paths are
// placed relative to the current working directory.
func NewFileArtifact(root string, paths ...string) *FileArtifact {
	return &FileArtifact{
		root:  root,
		paths: paths,
	}
}

// Name implements [Artifact].
func (a *FileArtifact) Name() string {
	switch {
	case a.root != "":
		return filepath.Base(a.root)
	case len(a.paths) == 1:
		return filepath.Base(a.paths[0])
	default:
		return "files"
	}
}

// Paths implements [Artifact].
func (a *FileArtifact) Paths() []string {
	return slices.Clone(a.paths)
}

// Validate implements [Validator].
func (a *FileArtifact) Validate() error {
	v := newValidation(a.Name())

	v.check(len(a.paths) > 0, "no paths given")

	for _, path := range a.paths {
		_, err := os.Lstat(path)
		v.check(err == nil, "%s does not exist", path)

		_, _, err = a.locate(path)
		v.fail(err)
	}

	return v.err()
}

// locate returns the host directory the path is looked up in and the name
// of the path in the tree.
func (a *FileArtifact) locate(path string) (string, string, error) {
	root := a.root

	if root == "" {
		if filepath.IsAbs(path) {
			return "/", filepath.ToSlash(path), nil
		}

		var err error

		root, err = os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("get working directory: %w", err)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("resolve root: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", fmt.Errorf("%s: %w", path, ErrPathOutsideRoot)
	}

	return absRoot, disk.Clean(filepath.ToSlash(rel)), nil
}

// Extract implements [Artifact].
func (a *FileArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	fsys := memfs.New()

	for _, path := range a.paths {
		root, name, err := a.locate(path)
		if err != nil {
			return nil, err
		}

		slog.Debug("Copy host path",
			slog.String("root", root),
			slog.String("name", name),
		)

		err = drive.CopyFromSrcToDest(ctx, hostfs.New(root), fsys, name, name)
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", path, err)
		}
	}

	return fsys, nil
}

// FileProducer writes the tree into a directory on the host.
type FileProducer struct {
	Target

	// PreserveEmptyDirectories keeps directories without any content.
	// They are omitted by default.
	PreserveEmptyDirectories bool
}

// Validate implements [Producer].
func (p *FileProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)

	info, err := os.Stat(p.Path)
	if err == nil {
		v.check(info.IsDir(), "%s exists and is not a directory", p.Path)
	}

	return v.err()
}

// ProduceFrom implements [Producer].
func (p *FileProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	if !p.PreserveEmptyDirectories {
		err := removeEmptyDirectories(fsys)
		if err != nil {
			return nil, err
		}
	}

	err = os.MkdirAll(p.Path, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	slog.Info("Write files", slog.String("path", p.Path))

	opts := p.copyOptions()
	if os.Geteuid() != 0 {
		opts = append(opts, drive.WithoutOwnership())
	}

	err = drive.CopyBetween(ctx, fsys, hostfs.New(p.Path), opts...)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewFileArtifact(p.Path, p.Path), nil
}

// removeEmptyDirectories removes all directories that do not contain any
// regular file or symbolic link, directly or in any subdirectory.
func removeEmptyDirectories(fsys *memfs.FS) error {
	var dirs []string

	for entry, err := range disk.Walk(fsys, "/") {
		if err != nil {
			return fmt.Errorf("walk: %w", err)
		}

		if entry.Type == disk.TypeDirectory && entry.Path != "/" {
			dirs = append(dirs, entry.Path)
		}
	}

	// Children are visited after their parents, so walk backwards.
	for _, dir := range slices.Backward(dirs) {
		empty := true

		for _, err := range fsys.ReadDir(dir) {
			if err != nil {
				return fmt.Errorf("read %s: %w", dir, err)
			}

			empty = false

			break
		}

		if empty {
			err := fsys.RemoveDirAll(dir)
			if err != nil {
				return fmt.Errorf("remove %s: %w", dir, err)
			}
		}
	}

	return nil
}
