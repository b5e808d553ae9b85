// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package inject applies declarative mutations to an in-memory file tree
// before it is written into an output format.
//
// The set of injections is closed: [Move], [Copy], [Symlink], [Touch],
// [Delete], [Create], [HostFile] and [HostDir]. They are applied in order by
// [Apply], which stops at the first failure and reports it as [*Error].
package inject
