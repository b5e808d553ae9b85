// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aibor/repack/internal/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

var _ disk.Reader = (*ext4Disk)(nil)

// ext4Disk is a [disk.Reader] backed by a filesystem of a block image. User
// and group IDs always read as 0.
type ext4Disk struct {
	fs filesystem.FileSystem
}

func newExt4Disk(fs filesystem.FileSystem) *ext4Disk {
	return &ext4Disk{fs: fs}
}

func ext4Error(op, name string, err error) error {
	return &disk.PathError{Op: op, Path: name, Err: err}
}

// lookup returns the directory entry of the named file.
func (d *ext4Disk) lookup(op, name string) (os.FileInfo, error) {
	name = disk.Clean(name)
	if name == "/" {
		return rootInfo{}, nil
	}

	base := path.Base(name)

	infos, err := d.fs.ReadDir(path.Dir(name))
	if err != nil {
		return nil, ext4Error(op, name, disk.ErrNotExist)
	}

	for _, info := range infos {
		if info.Name() == base {
			return info, nil
		}
	}

	return nil, ext4Error(op, name, disk.ErrNotExist)
}

// OpenFile implements [disk.Reader]. Files can only be opened for reading.
func (d *ext4Disk) OpenFile(name string, flag disk.OpenFlag) (disk.File, error) {
	name = disk.Clean(name)

	if flag&^disk.OpenRead != 0 {
		return nil, ext4Error("open", name, disk.ErrUnsupported)
	}

	info, err := d.lookup("open", name)
	if err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, ext4Error("open", name, disk.ErrIsDir)
	}

	file, err := d.fs.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, ext4Error("open", name, err)
	}

	return &ext4File{File: file, disk: d, name: name}, nil
}

// Metadata implements [disk.Reader]. Symbolic links are not followed.
func (d *ext4Disk) Metadata(name string) (disk.Metadata, error) {
	return d.metadata("stat", name)
}

// SymlinkMetadata implements [disk.Reader].
func (d *ext4Disk) SymlinkMetadata(name string) (disk.Metadata, error) {
	return d.metadata("lstat", name)
}

func (d *ext4Disk) metadata(op, name string) (disk.Metadata, error) {
	info, err := d.lookup(op, name)
	if err != nil {
		return disk.Metadata{}, err
	}

	mode := info.Mode()

	return disk.Metadata{
		Type:    disk.FileTypeOf(mode),
		Mode:    mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// ReadDir implements [disk.Reader]. Symbolic links whose target can not be
// read are left out.
func (d *ext4Disk) ReadDir(name string) iter.Seq2[disk.DirEntry, error] {
	return func(yield func(disk.DirEntry, error) bool) {
		infos, err := d.fs.ReadDir(disk.Clean(name))
		if err != nil {
			yield(disk.DirEntry{}, ext4Error("readdir", name, err))
			return
		}

		for _, info := range infos {
			if info.Name() == "." || info.Name() == ".." {
				continue
			}

			entry := disk.DirEntry{
				Name: info.Name(),
				Type: disk.FileTypeOf(info.Mode()),
			}

			if entry.Type == disk.TypeSymlink {
				_, err := d.readLink(path.Join(disk.Clean(name), entry.Name))
				if err != nil {
					slog.Warn("Skip unreadable symbolic link",
						slog.String("path", path.Join(name, entry.Name)),
						slog.Any("error", err),
					)

					continue
				}
			}

			if !yield(entry, nil) {
				return
			}
		}
	}
}

// ReadLink implements [disk.Reader].
func (d *ext4Disk) ReadLink(name string) (string, error) {
	info, err := d.lookup("readlink", name)
	if err != nil {
		return "", err
	}

	if info.Mode().Type() != fs.ModeSymlink {
		return "", ext4Error("readlink", name, disk.ErrNotSymlink)
	}

	return d.readLink(name)
}

// readLink reads the link target stored as content of the link.
func (d *ext4Disk) readLink(name string) (string, error) {
	file, err := d.fs.OpenFile(disk.Clean(name), os.O_RDONLY)
	if err != nil {
		return "", ext4Error("readlink", name, err)
	}
	defer file.Close()

	target, err := io.ReadAll(file)
	if err != nil {
		return "", ext4Error("readlink", name, err)
	}

	if len(target) == 0 {
		return "", ext4Error("readlink", name, disk.ErrUnsupported)
	}

	return string(target), nil
}

// Close implements [disk.Reader].
func (d *ext4Disk) Close() error {
	err := d.fs.Close()
	if err != nil {
		return fmt.Errorf("close filesystem: %w", err)
	}

	return nil
}

type ext4File struct {
	filesystem.File

	disk *ext4Disk
	name string
}

func (f *ext4File) Stat() (disk.Metadata, error) {
	return f.disk.metadata("stat", f.name)
}

func (f *ext4File) Close() error {
	err := f.File.Close()
	if err != nil && !errors.Is(err, fs.ErrClosed) {
		return ext4Error("close", f.name, err)
	}

	return nil
}

// rootInfo describes the root directory, which has no directory entry.
type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() any           { return nil }
