// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import "io/fs"

// Unix mode bits as used in archive headers.
const (
	unixSetuid = 0o4000
	unixSetgid = 0o2000
	unixSticky = 0o1000
)

// UnixPerm converts the permission and special bits of mode into their
// traditional unix representation.
func UnixPerm(mode fs.FileMode) uint32 {
	perm := uint32(mode.Perm())

	if mode&fs.ModeSetuid != 0 {
		perm |= unixSetuid
	}

	if mode&fs.ModeSetgid != 0 {
		perm |= unixSetgid
	}

	if mode&fs.ModeSticky != 0 {
		perm |= unixSticky
	}

	return perm
}

// PermFromUnix converts traditional unix permission and special bits into an
// [fs.FileMode]. File type bits are ignored.
func PermFromUnix(perm uint32) fs.FileMode {
	mode := fs.FileMode(perm) & fs.ModePerm

	if perm&unixSetuid != 0 {
		mode |= fs.ModeSetuid
	}

	if perm&unixSetgid != 0 {
		mode |= fs.ModeSetgid
	}

	if perm&unixSticky != 0 {
		mode |= fs.ModeSticky
	}

	return mode
}
