// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package hostfs provides a [disk.Disk] backed by a directory of the host
// file system.
package hostfs

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/aibor/repack/internal/disk"
	"golang.org/x/sys/unix"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

var _ disk.Disk = (*Disk)(nil)

// Disk is a [disk.Disk] rooted at a host directory. All paths are
// interpreted relative to the root directory.
type Disk struct {
	root string
}

// New returns a new [Disk] rooted at the given host directory.
func New(root string) *Disk {
	return &Disk{root: root}
}

// Root returns the host directory the disk is rooted at.
func (d *Disk) Root() string {
	return d.root
}

// HostPath returns the host path for the given disk path.
func (d *Disk) HostPath(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(disk.Clean(name)))
}

// OpenFile implements [disk.Disk].
func (d *Disk) OpenFile(name string, flag disk.OpenFlag) (disk.File, error) {
	osFlag := 0

	switch {
	case flag.Has(disk.OpenRead | disk.OpenWrite):
		osFlag = os.O_RDWR
	case flag.Has(disk.OpenWrite):
		osFlag = os.O_WRONLY
	default:
		osFlag = os.O_RDONLY
	}

	if flag.Has(disk.OpenCreate) {
		osFlag |= os.O_CREATE
	}

	if flag.Has(disk.OpenCreateNew) {
		osFlag |= os.O_CREATE | os.O_EXCL
	}

	if flag.Has(disk.OpenTruncate) && flag.Has(disk.OpenWrite) {
		osFlag |= os.O_TRUNC
	}

	file, err := os.OpenFile(d.HostPath(name), osFlag, defaultFileMode)
	if err != nil {
		return nil, wrapError("open", name, err)
	}

	return &hostFile{File: file, name: name}, nil
}

// Metadata implements [disk.Disk]. Symbolic links are followed.
func (d *Disk) Metadata(name string) (disk.Metadata, error) {
	var stat unix.Stat_t

	err := unix.Stat(d.HostPath(name), &stat)
	if err != nil {
		return disk.Metadata{}, wrapError("stat", name, err)
	}

	return metadataFromStat(&stat), nil
}

// SymlinkMetadata implements [disk.Disk].
func (d *Disk) SymlinkMetadata(name string) (disk.Metadata, error) {
	var stat unix.Stat_t

	err := unix.Lstat(d.HostPath(name), &stat)
	if err != nil {
		return disk.Metadata{}, wrapError("lstat", name, err)
	}

	return metadataFromStat(&stat), nil
}

// CreateDirAll implements [disk.Disk].
func (d *Disk) CreateDirAll(name string) error {
	err := os.MkdirAll(d.HostPath(name), defaultDirMode)
	if err != nil {
		return wrapError("mkdir", name, err)
	}

	return nil
}

// ReadDir implements [disk.Disk].
func (d *Disk) ReadDir(name string) iter.Seq2[disk.DirEntry, error] {
	return func(yield func(disk.DirEntry, error) bool) {
		entries, err := os.ReadDir(d.HostPath(name))
		if err != nil {
			yield(disk.DirEntry{}, wrapError("readdir", name, err))
			return
		}

		for _, entry := range entries {
			dirEntry := disk.DirEntry{
				Name: entry.Name(),
				Type: disk.FileTypeOf(entry.Type()),
			}

			if !yield(dirEntry, nil) {
				return
			}
		}
	}
}

// Symlink implements [disk.Disk].
func (d *Disk) Symlink(target, name string) error {
	err := os.Symlink(target, d.HostPath(name))
	if err != nil {
		return wrapError("symlink", name, err)
	}

	return nil
}

// ReadLink implements [disk.Disk].
func (d *Disk) ReadLink(name string) (string, error) {
	target, err := os.Readlink(d.HostPath(name))
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			err = disk.ErrNotSymlink
		}

		return "", wrapError("readlink", name, err)
	}

	return target, nil
}

// SetPermissions implements [disk.Disk].
func (d *Disk) SetPermissions(name string, mode fs.FileMode) error {
	err := os.Chmod(d.HostPath(name), mode)
	if err != nil {
		return wrapError("chmod", name, err)
	}

	return nil
}

// Chown implements [disk.Disk]. Symbolic links are not followed. It does
// nothing if the owner is already set as requested, so unprivileged users can
// copy their own files.
func (d *Disk) Chown(name string, uid, gid int) error {
	var stat unix.Stat_t

	hostPath := d.HostPath(name)

	err := unix.Lstat(hostPath, &stat)
	if err != nil {
		return wrapError("chown", name, err)
	}

	if int(stat.Uid) == uid && int(stat.Gid) == gid {
		return nil
	}

	err = unix.Lchown(hostPath, uid, gid)
	if err != nil {
		return wrapError("chown", name, err)
	}

	return nil
}

// Chtimes implements [disk.Disk]. Symbolic links are not followed.
func (d *Disk) Chtimes(name string, mtime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(mtime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}

	err := unix.UtimesNanoAt(unix.AT_FDCWD, d.HostPath(name), times, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		return wrapError("chtimes", name, err)
	}

	return nil
}

// Rename implements [disk.Disk].
func (d *Disk) Rename(oldname, newname string) error {
	err := os.Rename(d.HostPath(oldname), d.HostPath(newname))
	if err != nil {
		return wrapError("rename", oldname, err)
	}

	return nil
}

// RemoveFile implements [disk.Disk].
func (d *Disk) RemoveFile(name string) error {
	meta, err := d.SymlinkMetadata(name)
	if err != nil {
		return err
	}

	if meta.IsDir() {
		return wrapError("remove", name, disk.ErrIsDir)
	}

	err = os.Remove(d.HostPath(name))
	if err != nil {
		return wrapError("remove", name, err)
	}

	return nil
}

// RemoveDirAll implements [disk.Disk].
func (d *Disk) RemoveDirAll(name string) error {
	meta, err := d.SymlinkMetadata(name)
	if err != nil {
		return err
	}

	if !meta.IsDir() {
		return wrapError("removeall", name, disk.ErrNotDir)
	}

	err = os.RemoveAll(d.HostPath(name))
	if err != nil {
		return wrapError("removeall", name, err)
	}

	return nil
}

// Close implements [disk.Disk]. It does nothing.
func (*Disk) Close() error {
	return nil
}

var _ disk.File = (*hostFile)(nil)

type hostFile struct {
	*os.File

	name string
}

// Stat returns the current metadata of the file.
func (f *hostFile) Stat() (disk.Metadata, error) {
	var stat unix.Stat_t

	err := unix.Fstat(int(f.Fd()), &stat)
	if err != nil {
		return disk.Metadata{}, wrapError("stat", f.name, err)
	}

	return metadataFromStat(&stat), nil
}

func metadataFromStat(stat *unix.Stat_t) disk.Metadata {
	var fileType disk.FileType

	switch stat.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		fileType = disk.TypeRegular
	case unix.S_IFDIR:
		fileType = disk.TypeDirectory
	case unix.S_IFLNK:
		fileType = disk.TypeSymlink
	default:
		fileType = disk.TypeUnknown
	}

	sec, nsec := stat.Mtim.Unix()

	return disk.Metadata{
		Type:    fileType,
		Mode:    disk.PermFromUnix(stat.Mode),
		UID:     int(stat.Uid),
		GID:     int(stat.Gid),
		ModTime: time.Unix(sec, nsec),
		Size:    stat.Size,
	}
}

// wrapError converts the given error into a [disk.PathError] for the disk
// path name. Errno values that have a counterpart in the disk package are
// translated.
func wrapError(op, name string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOTDIR:
			err = disk.ErrNotDir
		case unix.EISDIR:
			err = disk.ErrIsDir
		case unix.ELOOP:
			err = disk.ErrTooManySymlinks
		case unix.ENOTEMPTY:
			err = disk.ErrDirNotEmpty
		default:
			err = errno
		}
	}

	return &disk.PathError{
		Op:   op,
		Path: name,
		Err:  err,
	}
}
