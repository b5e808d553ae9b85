// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package archive_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCPIO(tb testing.TB, fsys disk.Disk, opts ...archive.StreamOption) []byte {
	tb.Helper()

	var buf bytes.Buffer

	streamDisk := archive.NewStreamDisk(archive.NewCPIOWriter(&buf), opts...)

	require.NoError(tb, drive.CopyBetween(tb.Context(), fsys, streamDisk))
	require.NoError(tb, streamDisk.Close())

	return buf.Bytes()
}

func TestCPIO_RoundTrip(t *testing.T) {
	input := newTestTree(t)

	output, err := archive.ReadCPIO(bytes.NewReader(writeCPIO(t, input)))
	require.NoError(t, err)

	assertSameTree(t, input, output)

	meta, err := output.Metadata("/etc/hello.conf")
	require.NoError(t, err)
	assert.Equal(t, 42, meta.GID)
	assert.True(t, testTime.Equal(meta.ModTime))
}

func TestCPIO_Headers(t *testing.T) {
	data := writeCPIO(t, newTestTree(t))

	cpioReader := cpio.NewReader(bytes.NewReader(data))
	headers := map[string]*cpio.Header{}

	for {
		header, err := cpioReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		require.NoError(t, err)

		headers[header.Name] = header
	}

	require.Contains(t, headers, "bin")
	assert.Equal(t, cpio.FileMode(cpio.TypeDir), headers["bin"].Mode&cpio.ModeType)
	assert.Equal(t, 2, headers["bin"].Links)

	require.Contains(t, headers, "bin/hello")
	assert.Equal(t, cpio.FileMode(cpio.TypeReg), headers["bin/hello"].Mode&cpio.ModeType)
	assert.Equal(t, cpio.FileMode(0o755), headers["bin/hello"].Mode.Perm())

	require.Contains(t, headers, "usr/bin/hello")
	assert.Equal(t, cpio.FileMode(cpio.TypeSymlink), headers["usr/bin/hello"].Mode&cpio.ModeType)
	assert.Equal(t, "../../bin/hello", headers["usr/bin/hello"].Linkname)
}

func TestCPIO_Deterministic(t *testing.T) {
	clamp := archive.WithModTimeClamp(testTime)

	first := writeCPIO(t, newTestTree(t), clamp)

	extracted, err := archive.ReadCPIO(bytes.NewReader(first))
	require.NoError(t, err)

	second := writeCPIO(t, extracted, clamp)

	assert.Equal(t, first, second)
}

func TestReadCPIO_Invalid(t *testing.T) {
	_, err := archive.ReadCPIO(bytes.NewReader([]byte("not a cpio archive, definitely not")))
	require.Error(t, err)
}
