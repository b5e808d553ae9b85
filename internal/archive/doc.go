// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package archive provides stream backed disks for tar and cpio archives.
//
// A [StreamDisk] writes every entry it is given sequentially into an archive
// [Writer]. Entries are written once and can not be modified after the next
// entry has been started. For reading, [ReadTar] and [ReadCPIO] scan the
// whole archive and return a read-only [disk.Disk] view of its content.
package archive
