// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package disk defines the capability interface every backing store
// implements, so that in-memory trees, host directories, archive streams and
// block images can be used interchangeably as source or destination of a
// copy.
//
// Paths are slash separated and rooted at "/". Relative paths are interpreted
// relative to the root of the disk.
//
// Symbolic link detection takes precedence over metadata inspection. Some
// backing stores report the type of a link's target when asked naively, so
// callers that need the type of an entry should use [TypeOf].
package disk
