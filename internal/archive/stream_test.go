// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package archive_test

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestTree(tb testing.TB) *memfs.FS {
	tb.Helper()

	fsys := memfs.New()

	require.NoError(tb, disk.WriteFile(fsys, "/bin/hello", []byte("#!/bin/sh\necho hello\n"), 0o755))
	require.NoError(tb, disk.WriteFile(fsys, "/etc/hello.conf", []byte("greeting=hello\n"), 0o640))
	require.NoError(tb, fsys.Chown("/etc/hello.conf", 0, 42))
	require.NoError(tb, fsys.CreateDirAll("/var/lib/hello"))
	require.NoError(tb, fsys.Symlink("../../bin/hello", "/usr/bin/hello"))

	for entry, err := range disk.Walk(fsys, "/") {
		require.NoError(tb, err)

		if entry.Type != disk.TypeSymlink {
			require.NoError(tb, fsys.Chtimes(entry.Path, testTime))
		}
	}

	return fsys
}

func TestStreamDisk_CopyBetween(t *testing.T) {
	writer := &archive.MockWriter{}
	streamDisk := archive.NewStreamDisk(writer, archive.WithPrefix("."))

	require.NoError(t, drive.CopyBetween(t.Context(), newTestTree(t), streamDisk))
	require.NoError(t, streamDisk.Close())

	assert.True(t, writer.Closed)

	paths := make([]string, 0, len(writer.Entries))
	for _, entry := range writer.Entries {
		paths = append(paths, entry.Path)
	}

	expected := []string{
		".",
		"./bin",
		"./bin/hello",
		"./etc",
		"./etc/hello.conf",
		"./usr",
		"./usr/bin",
		"./usr/bin/hello",
		"./var",
		"./var/lib",
		"./var/lib/hello",
	}
	assert.Equal(t, expected, paths)

	hello := writer.Entries[2]
	assert.Equal(t, disk.TypeRegular, hello.Type)
	assert.Equal(t, "#!/bin/sh\necho hello\n", hello.Content)
	assert.Equal(t, fs.FileMode(0o755), hello.Meta.Mode)
	assert.EqualValues(t, len(hello.Content), hello.Meta.Size)
	assert.True(t, testTime.Equal(hello.Meta.ModTime))

	conf := writer.Entries[4]
	assert.Equal(t, fs.FileMode(0o640), conf.Meta.Mode)
	assert.Equal(t, 42, conf.Meta.GID)

	link := writer.Entries[7]
	assert.Equal(t, disk.TypeSymlink, link.Type)
	assert.Equal(t, "../../bin/hello", link.Target)
}

func TestStreamDisk_NoPrefix(t *testing.T) {
	writer := &archive.MockWriter{}
	streamDisk := archive.NewStreamDisk(writer)

	require.NoError(t, disk.WriteFile(streamDisk, "/a/b", []byte("x"), 0o600))
	require.NoError(t, streamDisk.Close())

	require.Len(t, writer.Entries, 2)
	assert.Equal(t, "a", writer.Entries[0].Path)
	assert.Equal(t, "a/b", writer.Entries[1].Path)
	assert.Equal(t, fs.FileMode(0o600), writer.Entries[1].Meta.Mode)
}

func TestStreamDisk_Options(t *testing.T) {
	clamp := time.Unix(1000, 0)
	writer := &archive.MockWriter{}
	streamDisk := archive.NewStreamDisk(writer,
		archive.WithModTimeClamp(clamp),
		archive.WithOwner(0, 0),
	)

	require.NoError(t, disk.WriteFile(streamDisk, "/file", nil, 0o644))
	require.NoError(t, streamDisk.Chown("/file", 1000, 1000))
	require.NoError(t, streamDisk.Chtimes("/file", time.Unix(2000, 0)))
	require.NoError(t, streamDisk.Close())

	require.Len(t, writer.Entries, 1)

	meta := writer.Entries[0].Meta
	assert.Equal(t, 0, meta.UID)
	assert.Equal(t, 0, meta.GID)
	assert.True(t, clamp.Equal(meta.ModTime))
}

func TestStreamDisk_Finalized(t *testing.T) {
	streamDisk := archive.NewStreamDisk(&archive.MockWriter{})

	require.NoError(t, disk.WriteFile(streamDisk, "/first", []byte("1"), 0o644))
	require.NoError(t, disk.WriteFile(streamDisk, "/second", []byte("2"), 0o644))

	tests := []struct {
		name        string
		fn          func() error
		expectedErr error
	}{
		{
			name: "chmod pending",
			fn: func() error {
				return streamDisk.SetPermissions("/second", 0o600)
			},
		},
		{
			name: "chmod written",
			fn: func() error {
				return streamDisk.SetPermissions("/first", 0o600)
			},
			expectedErr: disk.ErrUnsupported,
		},
		{
			name: "overwrite written",
			fn: func() error {
				return disk.WriteFile(streamDisk, "/first", nil, 0o644)
			},
			expectedErr: disk.ErrUnsupported,
		},
		{
			name: "create new existing",
			fn: func() error {
				_, err := streamDisk.OpenFile("/first", disk.OpenWrite|disk.OpenCreateNew)
				return err
			},
			expectedErr: disk.ErrExist,
		},
		{
			name: "read",
			fn: func() error {
				_, err := streamDisk.OpenFile("/second", disk.OpenRead)
				return err
			},
			expectedErr: disk.ErrUnsupported,
		},
		{
			name: "remove",
			fn: func() error {
				return streamDisk.RemoveFile("/first")
			},
			expectedErr: disk.ErrUnsupported,
		},
		{
			name: "rename",
			fn: func() error {
				return streamDisk.Rename("/first", "/third")
			},
			expectedErr: disk.ErrUnsupported,
		},
		{
			name: "chmod missing",
			fn: func() error {
				return streamDisk.SetPermissions("/missing", 0o600)
			},
			expectedErr: disk.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.fn(), tt.expectedErr)
		})
	}
}

func TestStreamDisk_Lookups(t *testing.T) {
	streamDisk := archive.NewStreamDisk(&archive.MockWriter{})

	require.NoError(t, disk.WriteFile(streamDisk, "/dir/file", []byte("abc"), 0o644))
	require.NoError(t, streamDisk.Symlink("file", "/dir/link"))

	fileType, err := disk.TypeOf(streamDisk, "/dir/link")
	require.NoError(t, err)
	assert.Equal(t, disk.TypeSymlink, fileType)

	fileType, err = disk.TypeOf(streamDisk, "/dir/file")
	require.NoError(t, err)
	assert.Equal(t, disk.TypeRegular, fileType)

	meta, err := streamDisk.Metadata("/dir/link")
	require.NoError(t, err)
	assert.Equal(t, disk.TypeRegular, meta.Type)
	assert.EqualValues(t, 3, meta.Size)

	_, err = disk.TypeOf(streamDisk, "/missing")
	require.ErrorIs(t, err, disk.ErrNotExist)

	var names []string

	for entry, err := range streamDisk.ReadDir("/dir") {
		require.NoError(t, err)

		names = append(names, entry.Name)
	}

	assert.Equal(t, []string{"file", "link"}, names)
}

func TestStreamDisk_WriterError(t *testing.T) {
	errTest := errors.New("test error")
	streamDisk := archive.NewStreamDisk(&archive.MockWriter{Err: errTest})

	require.NoError(t, disk.WriteFile(streamDisk, "/first", nil, 0o644))

	err := disk.WriteFile(streamDisk, "/second", nil, 0o644)
	require.ErrorIs(t, err, errTest)

	require.ErrorIs(t, streamDisk.Close(), errTest)
}
