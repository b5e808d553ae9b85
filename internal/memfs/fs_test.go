// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs_test

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(tb testing.TB) *memfs.FS {
	tb.Helper()

	fsys := memfs.New()

	require.NoError(tb, disk.WriteFile(fsys, "/dir/file", []byte("content"), 0o640))
	require.NoError(tb, fsys.CreateDirAll("/dir/sub/deep"))
	require.NoError(tb, fsys.Symlink("file", "/dir/link"))
	require.NoError(tb, fsys.Symlink("/dir/sub", "/abslink"))
	require.NoError(tb, fsys.Symlink("/nowhere", "/dangling"))

	return fsys
}

func TestFS_OpenFile(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		flag        disk.OpenFlag
		expectedErr error
	}{
		{
			name: "read existing",
			path: "/dir/file",
			flag: disk.OpenRead,
		},
		{
			name: "read through link",
			path: "/dir/link",
			flag: disk.OpenRead,
		},
		{
			name:        "read missing",
			path:        "/dir/missing",
			flag:        disk.OpenRead,
			expectedErr: disk.ErrNotExist,
		},
		{
			name:        "create new on existing",
			path:        "/dir/file",
			flag:        disk.OpenWrite | disk.OpenCreateNew,
			expectedErr: disk.ErrExist,
		},
		{
			name: "create with missing parents",
			path: "/new/parent/file",
			flag: disk.OpenReplace,
		},
		{
			name:        "directory",
			path:        "/dir/sub",
			flag:        disk.OpenRead,
			expectedErr: disk.ErrIsDir,
		},
		{
			name:        "parent is file",
			path:        "/dir/file/child",
			flag:        disk.OpenReplace,
			expectedErr: disk.ErrNotDir,
		},
		{
			name:        "dangling link",
			path:        "/dangling",
			flag:        disk.OpenRead,
			expectedErr: disk.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(t)

			file, err := fsys.OpenFile(tt.path, tt.flag)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)

				var pathErr *memfs.PathError
				require.ErrorAs(t, err, &pathErr)
				assert.Equal(t, "open", pathErr.Op)

				return
			}

			require.NoError(t, err)
			assert.NoError(t, file.Close())
		})
	}
}

func TestFS_ReadWrite(t *testing.T) {
	fsys := memfs.New()

	file, err := fsys.OpenFile("/a/b/c", disk.OpenReplace)
	require.NoError(t, err)

	_, err = file.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = file.Write([]byte("world"))
	require.NoError(t, err)

	_, err = file.Read(make([]byte, 1))
	require.ErrorIs(t, err, disk.ErrPermission)
	require.NoError(t, file.Close())

	_, err = file.Write([]byte("closed"))
	require.ErrorIs(t, err, fs.ErrClosed)

	content, err := disk.ReadFile(fsys, "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))

	for _, dir := range []string{"/a", "/a/b"} {
		meta, err := fsys.Metadata(dir)
		require.NoError(t, err, dir)
		assert.True(t, meta.IsDir(), dir)
		assert.Equal(t, fs.FileMode(0o755), meta.Mode, dir)
	}

	require.NoError(t, disk.WriteFile(fsys, "/a/b/c", []byte("new"), 0o600))

	content, err = disk.ReadFile(fsys, "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestFS_Metadata(t *testing.T) {
	fsys := newTestFS(t)
	mtime := time.Unix(1700000000, 0)

	require.NoError(t, fsys.Chown("/dir/file", 1000, 100))
	require.NoError(t, fsys.Chtimes("/dir/file", mtime))
	require.NoError(t, fsys.SetPermissions("/dir/file", 0o4755|fs.ModeSetuid))

	meta, err := fsys.Metadata("/dir/link")
	require.NoError(t, err)

	expected := disk.Metadata{
		Type:    disk.TypeRegular,
		Mode:    0o755 | fs.ModeSetuid,
		UID:     1000,
		GID:     100,
		ModTime: mtime,
		Size:    7,
	}
	assert.Equal(t, expected, meta)

	meta, err = fsys.SymlinkMetadata("/dir/link")
	require.NoError(t, err)
	assert.Equal(t, disk.TypeSymlink, meta.Type)
	assert.EqualValues(t, len("file"), meta.Size)

	_, err = fsys.Metadata("/missing")
	require.ErrorIs(t, err, disk.ErrNotExist)
}

func TestFS_ReadDir(t *testing.T) {
	fsys := newTestFS(t)

	actual := []disk.DirEntry{}

	for entry, err := range fsys.ReadDir("/dir") {
		require.NoError(t, err)

		actual = append(actual, entry)
	}

	expected := []disk.DirEntry{
		{Name: "file", Type: disk.TypeRegular},
		{Name: "link", Type: disk.TypeSymlink},
		{Name: "sub", Type: disk.TypeDirectory},
	}
	assert.Equal(t, expected, actual)

	for _, err := range fsys.ReadDir("/dir/file") {
		require.ErrorIs(t, err, disk.ErrNotDir)
	}
}

func TestFS_ReadLink(t *testing.T) {
	fsys := newTestFS(t)

	target, err := fsys.ReadLink("/dir/link")
	require.NoError(t, err)
	assert.Equal(t, "file", target)

	_, err = fsys.ReadLink("/dir/file")
	require.ErrorIs(t, err, disk.ErrWrongType)

	_, err = fsys.ReadLink("/missing")
	require.ErrorIs(t, err, disk.ErrNotExist)
}

func symlinkChain(tb testing.TB, fsys *memfs.FS, length int) string {
	tb.Helper()

	require.NoError(tb, disk.WriteFile(fsys, "/target", []byte("x"), 0o644))

	next := "/target"

	for idx := range length {
		name := fmt.Sprintf("/link%d", idx)
		require.NoError(tb, fsys.Symlink(next, name))

		next = name
	}

	return next
}

func TestFS_ResolveSymlink(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		expectedErr error
	}{
		{
			name:   "no link",
			length: 0,
		},
		{
			name:   "chain of 7",
			length: 7,
		},
		{
			name:   "chain of 8",
			length: memfs.MaxSymlinkDepth,
		},
		{
			name:        "chain of 9",
			length:      9,
			expectedErr: disk.ErrTooManySymlinks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := memfs.New()
			start := symlinkChain(t, fsys, tt.length)

			resolved, err := fsys.ResolveSymlink(start)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "/target", resolved)
		})
	}
}

func TestFS_ResolveSymlink_Cycle(t *testing.T) {
	fsys := memfs.New()

	require.NoError(t, fsys.Symlink("/b", "/a"))
	require.NoError(t, fsys.Symlink("/a", "/b"))

	_, err := fsys.ResolveSymlink("/a")
	require.ErrorIs(t, err, disk.ErrTooManySymlinks)
}

func TestFS_ResolveSymlink_Relative(t *testing.T) {
	fsys := newTestFS(t)

	resolved, err := fsys.ResolveSymlink("/abslink/deep")
	require.NoError(t, err)
	assert.Equal(t, "/dir/sub/deep", resolved)

	resolved, err = fsys.ResolveSymlink("/dir/link")
	require.NoError(t, err)
	assert.Equal(t, "/dir/file", resolved)
}

func TestFS_Rename(t *testing.T) {
	tests := []struct {
		name        string
		oldname     string
		newname     string
		expectedErr error
	}{
		{
			name:    "file to new name",
			oldname: "/dir/file",
			newname: "/dir/renamed",
		},
		{
			name:    "dir to new name",
			oldname: "/dir/sub",
			newname: "/sub",
		},
		{
			name:        "missing",
			oldname:     "/dir/missing",
			newname:     "/dir/renamed",
			expectedErr: disk.ErrNotExist,
		},
		{
			name:        "missing parent",
			oldname:     "/dir/file",
			newname:     "/none/file",
			expectedErr: disk.ErrNotExist,
		},
		{
			name:        "file onto dir",
			oldname:     "/dir/file",
			newname:     "/dir/sub",
			expectedErr: disk.ErrIsDir,
		},
		{
			name:        "dir onto file",
			oldname:     "/dir/sub",
			newname:     "/dir/file",
			expectedErr: disk.ErrNotDir,
		},
		{
			name:        "dir into itself",
			oldname:     "/dir",
			newname:     "/dir/sub/dir",
			expectedErr: disk.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(t)

			err := fsys.Rename(tt.oldname, tt.newname)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)

			_, err = fsys.SymlinkMetadata(tt.oldname)
			require.ErrorIs(t, err, disk.ErrNotExist)

			_, err = fsys.SymlinkMetadata(tt.newname)
			require.NoError(t, err)
		})
	}
}

func TestFS_Remove(t *testing.T) {
	fsys := newTestFS(t)

	require.ErrorIs(t, fsys.RemoveFile("/dir/sub"), disk.ErrIsDir)
	require.ErrorIs(t, fsys.RemoveDirAll("/dir/file"), disk.ErrNotDir)
	require.ErrorIs(t, fsys.RemoveFile("/missing"), disk.ErrNotExist)

	require.NoError(t, fsys.RemoveFile("/dir/link"))
	require.NoError(t, fsys.RemoveDirAll("/dir"))

	_, err := fsys.Metadata("/dir/sub/deep")
	require.ErrorIs(t, err, disk.ErrNotExist)

	require.NoError(t, fsys.RemoveDirAll("/"))

	for entry, err := range fsys.ReadDir("/") {
		require.NoError(t, err)
		assert.Fail(t, "unexpected entry", entry.Name)
	}
}

func TestFS_Size(t *testing.T) {
	fsys := memfs.New()
	assert.Zero(t, fsys.Size())

	require.NoError(t, disk.WriteFile(fsys, "/hundred", []byte(strings.Repeat("x", 100)), 0o644))
	assert.EqualValues(t, 100, fsys.Size())

	require.NoError(t, fsys.Symlink("/hundred", "/link"))
	require.NoError(t, disk.WriteFile(fsys, "/a/b/c", []byte("abc"), 0o644))
	assert.EqualValues(t, 103, fsys.Size())
}

func TestFS_CopyTree(t *testing.T) {
	fsys := newTestFS(t)

	require.NoError(t, fsys.CopyTree("/dir", "/copy/dir"))

	content, err := disk.ReadFile(fsys, "/copy/dir/link")
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	target, err := fsys.ReadLink("/copy/dir/link")
	require.NoError(t, err)
	assert.Equal(t, "file", target)

	// Copies are independent.
	require.NoError(t, disk.WriteFile(fsys, "/copy/dir/file", []byte("changed"), 0o644))

	content, err = disk.ReadFile(fsys, "/dir/file")
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	require.ErrorIs(t, fsys.CopyTree("/dir/file", "/dir/sub"), disk.ErrIsDir)
	require.ErrorIs(t, fsys.CopyTree("/dir/sub", "/dir/file"), disk.ErrNotDir)
	require.ErrorIs(t, fsys.CopyTree("/missing", "/x"), disk.ErrNotExist)
}

func TestFS_WalkDir(t *testing.T) {
	fsys := newTestFS(t)

	type entry struct {
		name string
		typ  fs.FileMode
	}

	actual := []entry{}

	err := fs.WalkDir(fsys, ".", func(
		path string,
		d fs.DirEntry,
		err error,
	) error {
		actual = append(actual, entry{
			name: path,
			typ:  d.Type(),
		})

		return err
	})
	require.NoError(t, err)

	expected := []entry{
		{".", fs.ModeDir},
		{"abslink", fs.ModeSymlink},
		{"dangling", fs.ModeSymlink},
		{"dir", fs.ModeDir},
		{"dir/file", 0},
		{"dir/link", fs.ModeSymlink},
		{"dir/sub", fs.ModeDir},
		{"dir/sub/deep", fs.ModeDir},
	}

	assert.Equal(t, expected, actual)

	content, err := fs.ReadFile(fsys, "dir/link")
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	info, err := fsys.Lstat("dir/link")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeSymlink, info.Mode().Type())
}
