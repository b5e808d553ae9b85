// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inject

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
)

// move moves src onto dest. Both paths must be clean. depth counts the
// symbolic links resolved so far.
func move(fsys *memfs.FS, src, dest string, depth int) error {
	if depth > disk.MaxSymlinkDepth {
		return &disk.PathError{
			Op:   "move",
			Path: src,
			Err:  disk.ErrTooManySymlinks,
		}
	}

	srcType, err := disk.TypeOf(fsys, src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	destType, err := disk.TypeOf(fsys, dest)
	if errors.Is(err, disk.ErrNotExist) {
		err := fsys.CreateDirAll(disk.Parent(dest))
		if err != nil {
			return fmt.Errorf("create parent: %w", err)
		}

		return fsys.Rename(src, dest) //nolint:wrapcheck
	} else if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if src == dest {
		return nil
	}

	switch {
	case srcType == disk.TypeSymlink:
		resolved, err := resolveOnce(fsys, src)
		if err != nil {
			return err
		}

		return move(fsys, resolved, dest, depth+1)
	case destType == disk.TypeSymlink:
		resolved, err := resolveOnce(fsys, dest)
		if err != nil {
			return err
		}

		return move(fsys, src, resolved, depth+1)
	case srcType == disk.TypeRegular && destType == disk.TypeRegular:
		return fsys.Rename(src, dest) //nolint:wrapcheck
	case srcType == disk.TypeRegular && destType == disk.TypeDirectory:
		return fsys.Rename(src, path.Join(dest, path.Base(src))) //nolint:wrapcheck
	case srcType == disk.TypeDirectory && destType == disk.TypeDirectory:
		return merge(fsys, src, dest, depth)
	case srcType == disk.TypeDirectory:
		return &disk.PathError{
			Op:   "move",
			Path: src,
			Err:  ErrMoveDirOntoFile,
		}
	default:
		return &disk.PathError{
			Op:   "move",
			Path: src,
			Err:  disk.ErrWrongType,
		}
	}
}

// merge moves all children of the directory src into the directory dest and
// removes src afterwards.
func merge(fsys *memfs.FS, src, dest string, depth int) error {
	if strings.HasPrefix(dest, src+"/") {
		return &disk.PathError{
			Op:   "move",
			Path: src,
			Err:  disk.ErrInvalid,
		}
	}

	names := []string{}

	for entry, err := range fsys.ReadDir(src) {
		if err != nil {
			return err //nolint:wrapcheck
		}

		names = append(names, entry.Name)
	}

	slices.Sort(names)

	for _, name := range names {
		err := move(fsys, path.Join(src, name), path.Join(dest, name), depth)
		if err != nil {
			return err
		}
	}

	return fsys.RemoveDirAll(src) //nolint:wrapcheck
}

// resolveOnce returns the path the symbolic link at name points to, without
// following any further links.
func resolveOnce(fsys *memfs.FS, name string) (string, error) {
	target, err := fsys.ReadLink(name)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if path.IsAbs(target) {
		return path.Clean(target), nil
	}

	return path.Join(path.Dir(name), target), nil
}
