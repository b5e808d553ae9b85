// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import (
	"errors"
	"fmt"
	"io/fs"
)

// MaxSymlinkDepth is the number of symbolic links disks follow at most while
// resolving a single path. Exceeding it fails with [ErrTooManySymlinks].
const MaxSymlinkDepth = 8

var (
	// ErrNotExist is returned if a path does not exist.
	ErrNotExist = fs.ErrNotExist

	// ErrExist is returned if a path exists that was not expected to.
	ErrExist = fs.ErrExist

	// ErrPermission is returned if the backing store denies access.
	ErrPermission = fs.ErrPermission

	// ErrInvalid is returned for invalid arguments, like malformed paths.
	ErrInvalid = fs.ErrInvalid

	// ErrUnsupported is returned by disks that can not provide an operation,
	// like random access on stream backed disks.
	ErrUnsupported = errors.ErrUnsupported

	// ErrWrongType is returned if an operation is applied to the wrong kind of
	// entry.
	ErrWrongType = errors.New("wrong file type")

	// ErrNotDir is returned if a directory is required.
	ErrNotDir = fmt.Errorf("%w: not a directory", ErrWrongType)

	// ErrIsDir is returned if a directory is given where none is allowed.
	ErrIsDir = fmt.Errorf("%w: is a directory", ErrWrongType)

	// ErrNotSymlink is returned if a symbolic link is required.
	ErrNotSymlink = fmt.Errorf("%w: not a symbolic link", ErrWrongType)

	// ErrDirNotEmpty is returned if a directory must be empty for the
	// operation.
	ErrDirNotEmpty = errors.New("directory not empty")

	// ErrTooManySymlinks is returned if resolving a path exceeds the symbolic
	// link depth limit.
	ErrTooManySymlinks = errors.New("too many levels of symbolic links")
)

// PathError records an error and the operation and file path that caused it.
type PathError = fs.PathError

func pathError(op, name string, err error) error {
	return &PathError{
		Op:   op,
		Path: name,
		Err:  err,
	}
}
