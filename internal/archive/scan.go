// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
)

// scannedEntry is a single archive member as read from an archive stream.
type scannedEntry struct {
	name     string
	typ      disk.FileType
	meta     disk.Metadata
	body     io.Reader
	target   string
	hardlink string
}

// addTo adds the entry to the given file system. Existing non-directory
// entries are replaced, since later members of an archive take precedence.
func (e scannedEntry) addTo(fsys *memfs.FS) error {
	err := e.clear(fsys)
	if err != nil {
		return err
	}

	switch e.typ {
	case disk.TypeDirectory:
		err = fsys.CreateDirAll(e.name)
	case disk.TypeSymlink:
		err = fsys.Symlink(e.target, e.name)
	case disk.TypeRegular:
		body := e.body
		if e.hardlink != "" {
			content, err := disk.ReadFile(fsys, e.hardlink)
			if err != nil {
				return fmt.Errorf("resolve hard link %s: %w", e.name, err)
			}

			body = bytes.NewReader(content)
		}

		err = disk.WriteFileFrom(fsys, e.name, body, e.meta.Mode)
	default:
		return &disk.PathError{Op: "scan", Path: e.name, Err: disk.ErrWrongType}
	}

	if err != nil {
		return fmt.Errorf("add %s: %w", e.name, err)
	}

	if e.typ == disk.TypeSymlink {
		return nil
	}

	return setAttributes(fsys, e.name, e.meta)
}

func (e scannedEntry) clear(fsys *memfs.FS) error {
	existing, err := disk.TypeOf(fsys, e.name)
	if errors.Is(err, disk.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("inspect %s: %w", e.name, err)
	}

	if existing == disk.TypeDirectory {
		if e.typ == disk.TypeDirectory {
			return nil
		}

		return fmt.Errorf("replace %s: %w", e.name, disk.ErrIsDir)
	}

	err = fsys.RemoveFile(e.name)
	if err != nil {
		return fmt.Errorf("replace %s: %w", e.name, err)
	}

	return nil
}

func setAttributes(d disk.Disk, name string, meta disk.Metadata) error {
	err := d.SetPermissions(name, meta.Mode)
	if err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}

	err = d.Chown(name, meta.UID, meta.GID)
	if err != nil {
		return fmt.Errorf("set ownership: %w", err)
	}

	err = d.Chtimes(name, meta.ModTime)
	if err != nil {
		return fmt.Errorf("set modification time: %w", err)
	}

	return nil
}
