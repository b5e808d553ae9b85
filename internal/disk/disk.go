// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import (
	"io"
	"io/fs"
	"iter"
	"time"
)

// OpenFlag defines how a file is opened by [Disk.OpenFile].
type OpenFlag uint8

const (
	// OpenRead opens the file for reading.
	OpenRead OpenFlag = 1 << iota
	// OpenWrite opens the file for writing.
	OpenWrite
	// OpenCreate creates the file if it does not exist.
	OpenCreate
	// OpenCreateNew creates the file and fails with [ErrExist] if it exists.
	OpenCreateNew
	// OpenTruncate truncates an existing file when opened for writing.
	OpenTruncate
)

// OpenReplace is the usual set of flags for writing a whole file.
const OpenReplace = OpenWrite | OpenCreate | OpenTruncate

// Has returns true if all bits of other are set in f.
func (f OpenFlag) Has(other OpenFlag) bool {
	return f&other == other
}

// Creates returns true if the flag permits creation of the file.
func (f OpenFlag) Creates() bool {
	return f&(OpenCreate|OpenCreateNew) != 0
}

// Disk is the set of capabilities a backing store provides.
//
// Implementations must return errors as [PathError] wrapping one of the
// sentinel errors of this package or an opaque error of the underlying
// storage medium.
type Disk interface {
	// OpenFile opens the named regular file.
	OpenFile(name string, flag OpenFlag) (File, error)

	// Metadata returns the metadata of the named file. Symbolic links may be
	// followed.
	Metadata(name string) (Metadata, error)

	// SymlinkMetadata returns the metadata of the named file without
	// following a symbolic link in the last path element.
	SymlinkMetadata(name string) (Metadata, error)

	// CreateDirAll creates the named directory along with all parents. It
	// does nothing if the directory exists already.
	CreateDirAll(name string) error

	// ReadDir returns the entries of the named directory. The sequence is
	// finite and must not be iterated more than once.
	ReadDir(name string) iter.Seq2[DirEntry, error]

	// Symlink creates name as a symbolic link pointing to target.
	Symlink(target, name string) error

	// ReadLink returns the target of the named symbolic link.
	ReadLink(name string) (string, error)

	SetPermissions(name string, mode fs.FileMode) error
	Chown(name string, uid, gid int) error
	Chtimes(name string, mtime time.Time) error
	Rename(oldname, newname string) error

	// RemoveFile removes the named non-directory file.
	RemoveFile(name string) error

	// RemoveDirAll removes the named directory and all its children.
	RemoveDirAll(name string) error

	// Close releases all resources. For stream backed disks it finalizes the
	// stream.
	Close() error
}

// Reader is the subset of [Disk] needed for reading a tree. Use [ReadOnly]
// to turn it into a [Disk].
type Reader interface {
	OpenFile(name string, flag OpenFlag) (File, error)
	Metadata(name string) (Metadata, error)
	SymlinkMetadata(name string) (Metadata, error)
	ReadDir(name string) iter.Seq2[DirEntry, error]
	ReadLink(name string) (string, error)
	Close() error
}

// File is an open file of a [Disk].
type File interface {
	io.Reader
	io.Writer
	io.Closer

	Stat() (Metadata, error)
}

// FileType describes the kind of a file.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
)

// String implements [fmt.Stringer].
func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileTypeOf returns the [FileType] for the given [fs.FileMode].
func FileTypeOf(mode fs.FileMode) FileType {
	switch mode.Type() {
	case 0:
		return TypeRegular
	case fs.ModeDir:
		return TypeDirectory
	case fs.ModeSymlink:
		return TypeSymlink
	default:
		return TypeUnknown
	}
}

// Metadata describes a file.
type Metadata struct {
	Type FileType
	// Mode holds permission bits along with setuid, setgid and sticky bits.
	Mode    fs.FileMode
	UID     int
	GID     int
	ModTime time.Time
	Size    int64
}

// IsDir returns true if the metadata describes a directory.
func (m Metadata) IsDir() bool { return m.Type == TypeDirectory }

// IsRegular returns true if the metadata describes a regular file.
func (m Metadata) IsRegular() bool { return m.Type == TypeRegular }

// IsSymlink returns true if the metadata describes a symbolic link.
func (m Metadata) IsSymlink() bool { return m.Type == TypeSymlink }

// FileMode returns the [fs.FileMode] including type bits.
func (m Metadata) FileMode() fs.FileMode {
	mode := m.Mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)

	switch m.Type {
	case TypeDirectory:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeUnknown:
		mode |= fs.ModeIrregular
	case TypeRegular:
	}

	return mode
}

// DirEntry is an entry read from a directory.
type DirEntry struct {
	Name string
	Type FileType
}
