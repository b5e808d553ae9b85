// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"slices"
	"time"

	"github.com/aibor/repack/internal/disk"
)

var _ fs.FS = (*FS)(nil)

// Open opens the named file for reading. It implements [fs.FS], so name must
// satisfy [fs.ValidPath]. Symbolic links are followed.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	_, n, err := fsys.lookup(name, true)
	if err != nil {
		return nil, &PathError{Op: "open", Path: name, Err: err}
	}

	return newOpenFile(name, n), nil
}

// Lstat returns information about the file with the given name.
//
// It returns a [PathError] in case of errors. It does not follow symbolic
// links and returns symbolic links directly.
func (fsys *FS) Lstat(name string) (fs.FileInfo, error) {
	meta, err := fsys.SymlinkMetadata(name)
	if err != nil {
		return nil, err
	}

	return &fileInfo{name: name, meta: meta}, nil
}

var _ fs.FileInfo = (*fileInfo)(nil)

type fileInfo struct {
	name string
	meta disk.Metadata
}

func (i *fileInfo) Name() string       { return path.Base(i.name) }
func (i *fileInfo) Size() int64        { return i.meta.Size }
func (i *fileInfo) Mode() fs.FileMode  { return i.meta.FileMode() }
func (i *fileInfo) ModTime() time.Time { return i.meta.ModTime }
func (i *fileInfo) IsDir() bool        { return i.meta.IsDir() }
func (i *fileInfo) Sys() any           { return i.meta }
func (i *fileInfo) String() string     { return fs.FormatFileInfo(i) }

var (
	_ fs.File        = (*openFile)(nil)
	_ fs.ReadDirFile = (*openFile)(nil)
)

type openFile struct {
	info    fileInfo
	reader  io.Reader
	entries []fs.DirEntry
	offset  int
}

func newOpenFile(name string, n node) *openFile {
	file := &openFile{
		info: fileInfo{
			name: name,
			meta: metadataOf(n),
		},
	}

	switch n := n.(type) {
	case *regularFile:
		file.reader = bytes.NewReader(slices.Clone(n.data))
	case *directory:
		for _, childName := range n.names() {
			child := n.children[childName]
			file.entries = append(file.entries, fs.FileInfoToDirEntry(&fileInfo{
				name: childName,
				meta: metadataOf(child),
			}))
		}
	}

	return file
}

// Stat implements [fs.File].
func (f *openFile) Stat() (fs.FileInfo, error) {
	return &f.info, nil
}

// Read implements [fs.File].
func (f *openFile) Read(b []byte) (int, error) {
	if f.reader == nil {
		return 0, &PathError{Op: "read", Path: f.info.name, Err: fs.ErrInvalid}
	}

	return f.reader.Read(b) //nolint:wrapcheck
}

// Close implements [fs.File].
func (*openFile) Close() error {
	return nil
}

// ReadDir implements [fs.ReadDirFile].
func (f *openFile) ReadDir(count int) ([]fs.DirEntry, error) {
	if !f.info.IsDir() {
		return nil, &PathError{Op: "readdir", Path: f.info.name, Err: disk.ErrNotDir}
	}

	start := f.offset
	end := len(f.entries)
	available := end - start

	if available == 0 && count > 0 {
		return nil, io.EOF
	}

	if count > 0 && available > count {
		end = start + count
	}

	f.offset = end

	return f.entries[start:end], nil
}
