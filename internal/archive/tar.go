// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
)

var _ Writer = (*TarWriter)(nil)

// TarWriter implements [Writer] for [tar.Writer].
type TarWriter struct {
	tarWriter *tar.Writer
}

// NewTarWriter creates a new archive writer.
func NewTarWriter(w io.Writer) *TarWriter {
	return &TarWriter{tar.NewWriter(w)}
}

// Close writes the archive trailer. It does not close the underlying
// [io.Writer].
func (w *TarWriter) Close() error {
	err := w.tarWriter.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (w *TarWriter) writeHeader(hdr *tar.Header) error {
	if err := w.tarWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}

// WriteDirectory adds a directory entry for the given path to the archive.
func (w *TarWriter) WriteDirectory(path string, meta disk.Metadata) error {
	header := tarHeader(path, meta)
	header.Typeflag = tar.TypeDir

	if !strings.HasSuffix(header.Name, "/") {
		header.Name += "/"
	}

	return w.writeHeader(header)
}

// WriteLink adds a symbolic link for the given path pointing to the given
// target.
func (w *TarWriter) WriteLink(path, target string, meta disk.Metadata) error {
	header := tarHeader(path, meta)
	header.Typeflag = tar.TypeSymlink
	header.Linkname = target
	header.Mode = 0o777

	return w.writeHeader(header)
}

// WriteRegular copies the content of source into the archive. meta.Size
// must match the number of bytes source yields.
func (w *TarWriter) WriteRegular(path string, source io.Reader, meta disk.Metadata) error {
	header := tarHeader(path, meta)
	header.Typeflag = tar.TypeReg
	header.Size = meta.Size

	if err := w.writeHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(w.tarWriter, source); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

func tarHeader(path string, meta disk.Metadata) *tar.Header {
	return &tar.Header{
		Name:    path,
		Mode:    int64(disk.UnixPerm(meta.Mode)),
		Uid:     meta.UID,
		Gid:     meta.GID,
		ModTime: meta.ModTime.Truncate(time.Second),
	}
}

// ReadTar reads the whole uncompressed tar stream and returns a read-only
// disk with its content.
//
// Hard links are resolved into copies of their target. Device files, FIFOs
// and other special entries are skipped.
func ReadTar(r io.Reader) (disk.Disk, error) {
	fsys, err := ScanTar(r)
	if err != nil {
		return nil, err
	}

	return disk.ReadOnly(fsys), nil
}

// ScanTar reads the whole uncompressed tar stream into a new [memfs.FS].
func ScanTar(r io.Reader) (*memfs.FS, error) {
	fsys := memfs.New()
	tarReader := tar.NewReader(r)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}

		name := disk.Clean(header.Name)
		meta := disk.Metadata{
			Mode:    disk.PermFromUnix(uint32(header.Mode)), //nolint:gosec
			UID:     header.Uid,
			GID:     header.Gid,
			ModTime: header.ModTime,
		}

		var entry scannedEntry

		switch header.Typeflag {
		case tar.TypeDir:
			entry = scannedEntry{name: name, typ: disk.TypeDirectory, meta: meta}
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck
			entry = scannedEntry{name: name, typ: disk.TypeRegular, meta: meta, body: tarReader}
		case tar.TypeSymlink:
			entry = scannedEntry{name: name, typ: disk.TypeSymlink, meta: meta, target: header.Linkname}
		case tar.TypeLink:
			entry = scannedEntry{name: name, typ: disk.TypeRegular, meta: meta, hardlink: disk.Clean(header.Linkname)}
		default:
			slog.Warn("Skip unsupported tar entry",
				slog.String("path", header.Name),
				slog.String("type", string(header.Typeflag)),
			)

			continue
		}

		err = entry.addTo(fsys)
		if err != nil {
			return nil, err
		}
	}

	return fsys, nil
}
