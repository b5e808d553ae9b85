// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/memfs"
	"github.com/aibor/repack/internal/offload"
)

// newArchiveWriter creates an archive writer on top of a stream.
type newArchiveWriter func(w io.Writer) archive.Writer

// readArchive decodes an archive stream into a read-only disk.
type readArchive func(r io.Reader) (disk.Disk, error)

func tarWriter(w io.Writer) archive.Writer {
	return archive.NewTarWriter(w)
}

func cpioWriter(w io.Writer) archive.Writer {
	return archive.NewCPIOWriter(w)
}

// writeArchive writes the whole tree as archive into w, compressed with the
// given compression.
func writeArchive(
	ctx context.Context,
	fsys disk.Disk,
	w io.Writer,
	compression compress.Type,
	newWriter newArchiveWriter,
	opts ...archive.StreamOption,
) error {
	streamOpts, err := streamOptions(opts...)
	if err != nil {
		return err
	}

	return offload.Do(ctx, func(ctx context.Context) error {
		compressor, err := compress.NewWriter(w, compression)
		if err != nil {
			return fmt.Errorf("compressor: %w", err)
		}

		streamDisk := archive.NewStreamDisk(newWriter(compressor), streamOpts...)

		err = drive.CopyBetween(ctx, fsys, streamDisk)
		if err != nil {
			err = fmt.Errorf("copy: %w", err)
		}

		return errors.Join(err, streamDisk.Close(), compressor.Close())
	})
}

// extractArchive reads the archive stream, decompressing it if required, and
// copies its content into a new tree.
func extractArchive(ctx context.Context, r io.Reader, read readArchive) (*memfs.FS, error) {
	var src disk.Disk

	err := offload.Do(ctx, func(_ context.Context) error {
		decompressor, compression, err := compress.NewReader(bufio.NewReader(r))
		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
		defer decompressor.Close()

		slog.Debug("Read archive", slog.String("compression", compression.String()))

		src, err = read(decompressor)

		return err
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	fsys := memfs.New()

	err = drive.CopyBetween(ctx, src, fsys)
	if err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}

	return fsys, nil
}

// extractArchiveFile is [extractArchive] for a host file.
func extractArchiveFile(ctx context.Context, path string, read readArchive) (*memfs.FS, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	return extractArchive(ctx, file, read)
}

// writeOutput creates the file at path and passes it to fn. Missing parent
// directories are created. The file is removed if fn fails.
func writeOutput(path string, fn func(w io.Writer) error) (err error) {
	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	buffered := bufio.NewWriter(file)

	err = fn(buffered)
	if err == nil {
		err = buffered.Flush()
	}

	return errors.Join(err, file.Close())
}
