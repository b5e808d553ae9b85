// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package archive

import (
	"io"

	"github.com/aibor/repack/internal/disk"
)

// Writer defines the archive writer interface.
//
// Paths are archive member names as they should appear in the archive. The
// given metadata provides permissions, ownership and modification time.
type Writer interface {
	WriteRegular(path string, source io.Reader, meta disk.Metadata) error
	WriteDirectory(path string, meta disk.Metadata) error
	WriteLink(path, target string, meta disk.Metadata) error
	Close() error
}
