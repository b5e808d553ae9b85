// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package drive copies file trees between any two [disk.Disk]
// implementations.
//
// The source tree is walked in deterministic order by [disk.Walk], so copying
// the same source twice produces the same sequence of operations on the
// destination. Stream backed destinations rely on that.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aibor/repack/internal/disk"
)

// Option configures a copy operation.
type Option func(*options)

type options struct {
	strictOverwrite bool
	skipOwnership   bool
}

// WithStrictOverwrite makes the copy fail with [disk.ErrExist] if a regular
// file would replace an existing regular file on the destination. By default
// the file is overwritten and a warning is logged.
func WithStrictOverwrite() Option {
	return func(o *options) {
		o.strictOverwrite = true
	}
}

// WithoutOwnership skips copying the user and group IDs.
func WithoutOwnership() Option {
	return func(o *options) {
		o.skipOwnership = true
	}
}

// CopyBetween copies the whole tree of src into the root of dest.
func CopyBetween(ctx context.Context, src, dest disk.Disk, opts ...Option) error {
	return CopyFromSrcToDest(ctx, src, dest, "/", "/", opts...)
}

// CopyFromSrcToDest copies the tree at srcPath on src to destPath on dest.
//
// Directories are created with the source's permissions, ownership and
// modification time. Regular files are streamed. If destPath is an existing
// directory and srcPath is a regular file, the file is copied into the
// directory. Symbolic links are recreated with the identical target. Entries
// of unknown type are skipped.
func CopyFromSrcToDest(
	ctx context.Context,
	src, dest disk.Disk,
	srcPath, destPath string,
	opts ...Option,
) error {
	copier := copier{src: src, dest: dest}
	for _, opt := range opts {
		opt(&copier.opts)
	}

	srcPath = disk.Clean(srcPath)
	destPath = disk.Clean(destPath)

	for entry, err := range disk.Walk(src, srcPath) {
		if err != nil {
			return fmt.Errorf("walk %s: %w", srcPath, err)
		}

		err := ctx.Err()
		if err != nil {
			return err //nolint:wrapcheck
		}

		target := mapPath(srcPath, destPath, entry.Path)

		err = copier.copyEntry(entry, target)
		if err != nil {
			return err
		}
	}

	return nil
}

// mapPath returns the destination path for name, which is located in the
// tree at srcRoot.
func mapPath(srcRoot, destRoot, name string) string {
	if name == srcRoot {
		return destRoot
	}

	return path.Join(destRoot, name[len(srcRoot):])
}

type copier struct {
	src  disk.Disk
	dest disk.Disk
	opts options
}

func (c *copier) copyEntry(entry disk.Entry, target string) error {
	switch entry.Type {
	case disk.TypeDirectory:
		slog.Debug("Copy directory",
			slog.String("src", entry.Path),
			slog.String("dest", target),
		)

		return c.copyDirectory(entry.Path, target)
	case disk.TypeRegular:
		slog.Debug("Copy file",
			slog.String("src", entry.Path),
			slog.String("dest", target),
		)

		return c.copyRegular(entry.Path, target)
	case disk.TypeSymlink:
		slog.Debug("Copy symlink",
			slog.String("src", entry.Path),
			slog.String("dest", target),
		)

		return c.copySymlink(entry.Path, target)
	default:
		slog.Error("Skip file of unknown type",
			slog.String("path", entry.Path),
		)

		return nil
	}
}

func (c *copier) copyDirectory(src, dest string) error {
	err := c.dest.CreateDirAll(dest)
	if err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	return c.copyAttributes(src, dest)
}

func (c *copier) copyRegular(src, dest string) error {
	destType, err := disk.TypeOf(c.dest, dest)

	switch {
	case errors.Is(err, disk.ErrNotExist):
		err = c.dest.CreateDirAll(disk.Parent(dest))
		if err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("inspect destination: %w", err)
	case destType == disk.TypeDirectory:
		return c.copyRegular(src, path.Join(dest, path.Base(src)))
	case destType == disk.TypeSymlink:
		slog.Warn("Skip file as destination is a symbolic link",
			slog.String("src", src),
			slog.String("dest", dest),
		)

		return nil
	case c.opts.strictOverwrite:
		return &disk.PathError{Op: "copy", Path: dest, Err: disk.ErrExist}
	default:
		slog.Warn("Overwrite existing file",
			slog.String("src", src),
			slog.String("dest", dest),
		)
	}

	err = c.copyContent(src, dest)
	if err != nil {
		return err
	}

	return c.copyAttributes(src, dest)
}

func (c *copier) copyContent(src, dest string) error {
	source, err := c.src.OpenFile(src, disk.OpenRead)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	target, err := c.dest.OpenFile(dest, disk.OpenReplace)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	_, err = io.Copy(target, source)
	if err != nil {
		_ = target.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	err = target.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	return nil
}

func (c *copier) copySymlink(src, dest string) error {
	target, err := c.src.ReadLink(src)
	if err != nil {
		return fmt.Errorf("read link: %w", err)
	}

	err = c.dest.CreateDirAll(disk.Parent(dest))
	if err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	err = c.dest.Symlink(target, dest)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}

	return nil
}

func (c *copier) copyAttributes(src, dest string) error {
	meta, err := c.src.SymlinkMetadata(src)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	err = c.dest.SetPermissions(dest, meta.Mode)
	if err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}

	if !c.opts.skipOwnership {
		err = c.dest.Chown(dest, meta.UID, meta.GID)
		if errors.Is(err, disk.ErrPermission) {
			slog.Warn("Keep ownership of copied file",
				slog.String("path", dest),
				slog.Any("error", err),
			)
		} else if err != nil {
			return fmt.Errorf("set ownership: %w", err)
		}
	}

	err = c.dest.Chtimes(dest, meta.ModTime)
	if err != nil {
		return fmt.Errorf("set modification time: %w", err)
	}

	return nil
}
