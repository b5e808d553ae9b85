// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/hostfs"
	"github.com/aibor/repack/internal/memfs"
)

const defaultFileMode = 0o644

// Injection is a single mutation of a file tree.
type Injection interface {
	// Kind returns the type of the injection.
	Kind() Kind

	apply(ctx context.Context, fsys *memfs.FS, opts []drive.Option) error
}

// Apply applies the given injections in order. It stops at the first failing
// injection and returns an [*Error] for it. The options are passed to the
// copy engine for [HostFile] and [HostDir].
func Apply(
	ctx context.Context,
	fsys *memfs.FS,
	injections []Injection,
	opts ...drive.Option,
) error {
	for idx, injection := range injections {
		err := ctx.Err()
		if err == nil {
			err = injection.apply(ctx, fsys, opts)
		}

		if err != nil {
			return &Error{
				Index: idx,
				Kind:  injection.Kind(),
				Err:   err,
			}
		}
	}

	return nil
}

var (
	_ Injection = Move{}
	_ Injection = Copy{}
	_ Injection = Symlink{}
	_ Injection = Touch{}
	_ Injection = Delete{}
	_ Injection = Create{}
	_ Injection = HostFile{}
	_ Injection = HostDir{}
)

// Move moves Src to Dest.
//
// A regular file replaces an existing regular file at Dest or is moved into
// an existing directory at Dest. A directory is merged into an existing
// directory at Dest. Symbolic links at Src or Dest are resolved one link at
// a time. Missing parents of Dest are created.
type Move struct {
	Src  string
	Dest string
}

// Kind implements [Injection].
func (Move) Kind() Kind { return KindMove }

func (i Move) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Move", slog.String("src", i.Src), slog.String("dest", i.Dest))

	return move(fsys, disk.Clean(i.Src), disk.Clean(i.Dest), 0)
}

// Copy copies Src to Dest. Directories are copied recursively.
type Copy struct {
	Src  string
	Dest string
}

// Kind implements [Injection].
func (Copy) Kind() Kind { return KindCopy }

func (i Copy) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Copy", slog.String("src", i.Src), slog.String("dest", i.Dest))

	return fsys.CopyTree(i.Src, i.Dest) //nolint:wrapcheck
}

// Symlink creates a symbolic link at Dest that points to Src.
type Symlink struct {
	Src  string
	Dest string
}

// Kind implements [Injection].
func (Symlink) Kind() Kind { return KindSymlink }

func (i Symlink) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Symlink", slog.String("src", i.Src), slog.String("dest", i.Dest))

	err := fsys.CreateDirAll(disk.Parent(i.Dest))
	if err != nil {
		return fmt.Errorf("create parent: %w", err)
	}

	return fsys.Symlink(i.Src, i.Dest) //nolint:wrapcheck
}

// Touch creates an empty regular file at Path, if it does not exist yet.
type Touch struct {
	Path string
}

// Kind implements [Injection].
func (Touch) Kind() Kind { return KindTouch }

func (i Touch) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Touch", slog.String("path", i.Path))

	file, err := fsys.OpenFile(i.Path, disk.OpenWrite|disk.OpenCreate)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return file.Close() //nolint:wrapcheck
}

// Delete removes the file or directory tree at Path. Nothing happens if Path
// does not exist.
type Delete struct {
	Path string
}

// Kind implements [Injection].
func (Delete) Kind() Kind { return KindDelete }

func (i Delete) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Delete", slog.String("path", i.Path))

	fileType, err := disk.TypeOf(fsys, i.Path)
	if errors.Is(err, disk.ErrNotExist) {
		return nil
	} else if err != nil {
		return err //nolint:wrapcheck
	}

	if fileType == disk.TypeDirectory {
		return fsys.RemoveDirAll(i.Path) //nolint:wrapcheck
	}

	return fsys.RemoveFile(i.Path) //nolint:wrapcheck
}

// Create writes Content into a regular file at Path. An existing file is
// truncated.
type Create struct {
	Path    string
	Content []byte
}

// Kind implements [Injection].
func (Create) Kind() Kind { return KindCreate }

func (i Create) apply(_ context.Context, fsys *memfs.FS, _ []drive.Option) error {
	slog.Debug("Create", slog.String("path", i.Path), slog.Int("size", len(i.Content)))

	return disk.WriteFile(fsys, i.Path, i.Content, defaultFileMode) //nolint:wrapcheck
}

// HostFile copies the regular file Src from the host into the tree at Dest.
// Relative paths are resolved against the current working directory and
// symbolic links are followed.
type HostFile struct {
	Src  string
	Dest string
}

// Kind implements [Injection].
func (HostFile) Kind() Kind { return KindHostFile }

func (i HostFile) apply(ctx context.Context, fsys *memfs.FS, opts []drive.Option) error {
	return copyFromHost(ctx, fsys, i.Src, i.Dest, disk.TypeRegular, opts)
}

// HostDir copies the directory tree Src from the host into the tree at Dest.
// Relative paths are resolved against the current working directory.
type HostDir struct {
	Src  string
	Dest string
}

// Kind implements [Injection].
func (HostDir) Kind() Kind { return KindHostDir }

func (i HostDir) apply(ctx context.Context, fsys *memfs.FS, opts []drive.Option) error {
	return copyFromHost(ctx, fsys, i.Src, i.Dest, disk.TypeDirectory, opts)
}

func copyFromHost(
	ctx context.Context,
	fsys *memfs.FS,
	src, dest string,
	expectedType disk.FileType,
	opts []drive.Option,
) error {
	hostPath, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolve host path: %w", err)
	}

	hostPath, err = filepath.EvalSymlinks(hostPath)
	if err != nil {
		return fmt.Errorf("resolve host path: %w", err)
	}

	slog.Debug("Copy from host",
		slog.String("src", hostPath),
		slog.String("dest", dest),
		slog.String("type", expectedType.String()),
	)

	host := hostfs.New("/")
	hostName := filepath.ToSlash(hostPath)

	fileType, err := disk.TypeOf(host, hostName)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if fileType != expectedType {
		return &disk.PathError{
			Op:   "inject",
			Path: hostPath,
			Err:  disk.ErrWrongType,
		}
	}

	return drive.CopyFromSrcToDest(ctx, host, fsys, hostName, dest, opts...) //nolint:wrapcheck
}
