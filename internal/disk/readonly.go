// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import (
	"io/fs"
	"time"
)

var _ Disk = (*readOnly)(nil)

type readOnly struct {
	Reader
}

// ReadOnly wraps the given [Reader] into a [Disk] whose mutating operations
// fail with [ErrUnsupported].
func ReadOnly(d Reader) Disk {
	return &readOnly{d}
}

func (d *readOnly) OpenFile(name string, flag OpenFlag) (File, error) {
	if flag&^OpenRead != 0 {
		return nil, pathError("open", name, ErrUnsupported)
	}

	return d.Reader.OpenFile(name, flag) //nolint:wrapcheck
}

func (*readOnly) CreateDirAll(name string) error {
	return pathError("mkdir", name, ErrUnsupported)
}

func (*readOnly) Symlink(_, name string) error {
	return pathError("symlink", name, ErrUnsupported)
}

func (*readOnly) SetPermissions(name string, _ fs.FileMode) error {
	return pathError("chmod", name, ErrUnsupported)
}

func (*readOnly) Chown(name string, _, _ int) error {
	return pathError("chown", name, ErrUnsupported)
}

func (*readOnly) Chtimes(name string, _ time.Time) error {
	return pathError("chtimes", name, ErrUnsupported)
}

func (*readOnly) Rename(oldname, _ string) error {
	return pathError("rename", oldname, ErrUnsupported)
}

func (*readOnly) RemoveFile(name string) error {
	return pathError("remove", name, ErrUnsupported)
}

func (*readOnly) RemoveDirAll(name string) error {
	return pathError("removeall", name, ErrUnsupported)
}
