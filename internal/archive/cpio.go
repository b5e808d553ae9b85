// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
	"github.com/cavaliergopher/cpio"
)

const numLinks = 2

var _ Writer = (*CPIOWriter)(nil)

// CPIOWriter implements [Writer] for [cpio.Writer]. Archives are written in
// SVR4 "newc" format.
type CPIOWriter struct {
	cpioWriter *cpio.Writer
}

// NewCPIOWriter creates a new archive writer.
func NewCPIOWriter(w io.Writer) *CPIOWriter {
	return &CPIOWriter{cpio.NewWriter(w)}
}

// Close closes the [Writer]. Flush is called by the underlying closer.
func (w *CPIOWriter) Close() error {
	err := w.cpioWriter.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

// Flush writes the data to the underlying [io.Writer].
func (w *CPIOWriter) Flush() error {
	err := w.cpioWriter.Flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// writeHeader writes the cpio header.
func (w *CPIOWriter) writeHeader(hdr *cpio.Header) error {
	if err := w.cpioWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}

// WriteDirectory add a directory entry for the given path to the archive.
func (w *CPIOWriter) WriteDirectory(path string, meta disk.Metadata) error {
	header := cpioHeader(path, cpio.TypeDir, meta)
	header.Links = numLinks

	return w.writeHeader(header)
}

// WriteLink adds a symbolic link for the given path pointing to the given
// target.
func (w *CPIOWriter) WriteLink(path, target string, meta disk.Metadata) error {
	header := cpioHeader(path, cpio.TypeSymlink, meta)
	header.Mode = cpio.TypeSymlink | cpio.ModePerm
	header.Size = int64(len(target))

	if err := w.writeHeader(header); err != nil {
		return err
	}

	// Body of a link is the path of the target file.
	if _, err := w.cpioWriter.Write([]byte(target)); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

// WriteRegular copies the content of source into the archive. meta.Size
// must match the number of bytes source yields.
func (w *CPIOWriter) WriteRegular(path string, source io.Reader, meta disk.Metadata) error {
	header := cpioHeader(path, cpio.TypeReg, meta)
	header.Size = meta.Size

	if err := w.writeHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(w.cpioWriter, source); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

func cpioHeader(path string, fileType cpio.FileMode, meta disk.Metadata) *cpio.Header {
	return &cpio.Header{
		Name:    path,
		Mode:    fileType | cpio.FileMode(disk.UnixPerm(meta.Mode)),
		Uid:     meta.UID,
		Guid:    meta.GID,
		ModTime: meta.ModTime,
		Links:   1,
	}
}

// ReadCPIO reads the whole uncompressed cpio stream and returns a read-only
// disk with its content.
func ReadCPIO(r io.Reader) (disk.Disk, error) {
	fsys, err := ScanCPIO(r)
	if err != nil {
		return nil, err
	}

	return disk.ReadOnly(fsys), nil
}

// ScanCPIO reads the whole uncompressed cpio stream into a new [memfs.FS].
// Device files, FIFOs and sockets are skipped.
func ScanCPIO(r io.Reader) (*memfs.FS, error) {
	fsys := memfs.New()
	cpioReader := cpio.NewReader(r)

	for {
		header, err := cpioReader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read cpio header: %w", err)
		}

		name := disk.Clean(header.Name)
		meta := disk.Metadata{
			Mode:    disk.PermFromUnix(uint32(header.Mode)),
			UID:     header.Uid,
			GID:     header.Guid,
			ModTime: header.ModTime,
		}

		var entry scannedEntry

		switch header.Mode & cpio.ModeType {
		case cpio.TypeDir:
			entry = scannedEntry{name: name, typ: disk.TypeDirectory, meta: meta}
		case cpio.TypeReg:
			entry = scannedEntry{name: name, typ: disk.TypeRegular, meta: meta, body: cpioReader}
		case cpio.TypeSymlink:
			entry = scannedEntry{name: name, typ: disk.TypeSymlink, meta: meta, target: header.Linkname}
		default:
			slog.Warn("Skip unsupported cpio entry",
				slog.String("path", header.Name),
				slog.String("mode", header.Mode.String()),
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
