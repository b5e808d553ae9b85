// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs

import (
	"io"
	"io/fs"

	"github.com/aibor/repack/internal/disk"
)

var _ disk.File = (*handle)(nil)

// handle is an open regular file of an [FS].
type handle struct {
	fsys   *FS
	name   string
	file   *regularFile
	flag   disk.OpenFlag
	offset int
	closed bool
}

func (h *handle) check(op string, required disk.OpenFlag) error {
	switch {
	case h.closed:
		return &PathError{Op: op, Path: h.name, Err: fs.ErrClosed}
	case !h.flag.Has(required):
		return &PathError{Op: op, Path: h.name, Err: disk.ErrPermission}
	default:
		return nil
	}
}

// Read implements [io.Reader].
func (h *handle) Read(b []byte) (int, error) {
	if err := h.check("read", disk.OpenRead); err != nil {
		return 0, err
	}

	h.fsys.mu.RLock()
	defer h.fsys.mu.RUnlock()

	if h.offset >= len(h.file.data) {
		return 0, io.EOF
	}

	n := copy(b, h.file.data[h.offset:])
	h.offset += n

	return n, nil
}

// Write implements [io.Writer].
func (h *handle) Write(b []byte) (int, error) {
	if err := h.check("write", disk.OpenWrite); err != nil {
		return 0, err
	}

	h.fsys.mu.Lock()
	defer h.fsys.mu.Unlock()

	end := h.offset + len(b)
	if end > len(h.file.data) {
		h.file.data = append(h.file.data, make([]byte, end-len(h.file.data))...)
	}

	copy(h.file.data[h.offset:], b)
	h.offset = end
	h.file.mtime = h.fsys.now()

	return len(b), nil
}

// Stat returns the current metadata of the file.
func (h *handle) Stat() (disk.Metadata, error) {
	if h.closed {
		return disk.Metadata{}, &PathError{Op: "stat", Path: h.name, Err: fs.ErrClosed}
	}

	h.fsys.mu.RLock()
	defer h.fsys.mu.RUnlock()

	return metadataOf(h.file), nil
}

// Close implements [io.Closer].
func (h *handle) Close() error {
	if h.closed {
		return &PathError{Op: "close", Path: h.name, Err: fs.ErrClosed}
	}

	h.closed = true

	return nil
}
