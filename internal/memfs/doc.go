// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package memfs provides an in-memory file tree. It is the intermediate
// representation every conversion passes through: artifacts are extracted
// into it, mutated and then copied into their destination format.
//
// The tree supports directories, regular files and symbolic links and keeps
// permission bits, ownership and modification times for each of them. It
// implements [disk.Disk] as well as [io/fs.FS] along with ReadLink and Lstat
// of [io/fs.ReadLinkFS].
//
// Directories are created implicitly: creating a file at /a/b/c creates /a
// and /a/b if they do not exist. Directory entries are always enumerated in
// lexicographic order.
package memfs
