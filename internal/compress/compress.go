// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package compress detects and translates stream compression formats.
//
// Supported formats are gzip, raw deflate, zlib, xz, zstd and lz4 in both
// directions, bzip2 for decompression only.
package compress

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"golang.org/x/sync/errgroup"
)

// zstdLevel is the zstd reference level used for encoding.
const zstdLevel = 6

// magicLen is the number of bytes required to detect every known format.
const magicLen = 6

var (
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicGzip  = []byte{0x1f, 0x8b}
	magicXz    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	magicLZ4   = []byte{0x04, 0x22, 0x4d, 0x18}
	magicBzip2 = []byte("BZh")
)

// Detect returns the compression [Type] of the stream starting with the
// given header bytes. It returns [None] if no known format matches.
func Detect(header []byte) Type {
	switch {
	case bytes.HasPrefix(header, magicZstd):
		return Zstd
	case bytes.HasPrefix(header, magicGzip):
		return Gzip
	case bytes.HasPrefix(header, magicXz):
		return Xz
	case bytes.HasPrefix(header, magicLZ4):
		return LZ4
	case bytes.HasPrefix(header, magicBzip2):
		return Bzip2
	case isZlibHeader(header):
		return Zlib
	default:
		return None
	}
}

// isZlibHeader checks for deflate compression method with a 32K window and
// any of the common compression level markers.
func isZlibHeader(header []byte) bool {
	if len(header) < 2 || header[0] != 0x78 {
		return false
	}

	switch header[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	default:
		return false
	}
}

// Sniff detects the compression [Type] of the given stream. It returns a
// reader that yields the complete stream including the inspected bytes.
func Sniff(r io.Reader) (Type, io.Reader, error) {
	buffered := bufio.NewReader(r)

	header, err := buffered.Peek(magicLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return None, nil, fmt.Errorf("read header: %w", err)
	}

	return Detect(header), buffered, nil
}

// NewReader detects the compression of the given stream and returns a reader
// that yields the decompressed data along with the detected [Type].
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	compression, stream, err := Sniff(r)
	if err != nil {
		return nil, None, err
	}

	slog.Debug("Detected compression", slog.String("type", string(compression)))

	reader, err := NewTypedReader(stream, compression)
	if err != nil {
		return nil, None, err
	}

	return reader, compression, nil
}

// NewTypedReader returns a reader that decompresses the given stream with
// the given compression [Type].
func NewTypedReader(r io.Reader, compression Type) (io.ReadCloser, error) {
	var (
		reader io.ReadCloser
		err    error
	)

	switch compression {
	case None:
		reader = io.NopCloser(r)
	case Gzip:
		reader, err = gzip.NewReader(r)
	case Deflate:
		reader = flate.NewReader(r)
	case Zlib:
		reader, err = zlib.NewReader(r)
	case Xz:
		var xzReader *xz.Reader

		xzReader, err = xz.NewReader(r)
		reader = io.NopCloser(xzReader)
	case Zstd:
		var decoder *zstd.Decoder

		decoder, err = zstd.NewReader(r)
		if err == nil {
			reader = decoder.IOReadCloser()
		}
	case LZ4:
		reader = io.NopCloser(lz4.NewReader(r))
	case Bzip2:
		reader = io.NopCloser(bzip2.NewReader(r))
	default:
		return nil, fmt.Errorf("%w: %s", ErrTypeInvalid, compression)
	}

	if err != nil {
		return nil, fmt.Errorf("%s reader: %w", compression, err)
	}

	return reader, nil
}

// NewWriter returns a writer that compresses everything written to it with
// the given compression [Type] into w. The returned writer must be closed to
// flush all data.
func NewWriter(w io.Writer, compression Type) (io.WriteCloser, error) {
	var (
		writer io.WriteCloser
		err    error
	)

	switch compression {
	case None:
		writer = nopWriteCloser{w}
	case Gzip:
		writer = gzip.NewWriter(w)
	case Deflate:
		writer, err = flate.NewWriter(w, flate.DefaultCompression)
	case Zlib:
		writer, err = zlib.NewWriterLevel(w, zlib.DefaultCompression)
	case Xz:
		writer, err = xz.NewWriter(w)
	case Zstd:
		writer, err = zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdLevel)),
		)
	case LZ4:
		writer = lz4.NewWriter(w)
	case Bzip2:
		return nil, fmt.Errorf("%w: %s writer", ErrUnsupported, compression)
	default:
		return nil, fmt.Errorf("%w: %s", ErrTypeInvalid, compression)
	}

	if err != nil {
		return nil, fmt.Errorf("%s writer: %w", compression, err)
	}

	return writer, nil
}

// Recompress reads the stream src, detects its compression and writes it
// compressed with the given [Type] into dst. If the detected type matches
// the requested one, the stream is copied unchanged.
//
// Decompression and compression run concurrently, connected by a pipe.
func Recompress(ctx context.Context, dst io.Writer, src io.Reader, compression Type) error {
	detected, stream, err := Sniff(src)
	if err != nil {
		return err
	}

	if detected == compression {
		slog.Debug("Copy stream without recompression",
			slog.String("type", string(compression)),
		)

		_, err := io.Copy(dst, stream)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}

		return nil
	}

	slog.Debug("Recompress stream",
		slog.String("from", string(detected)),
		slog.String("to", string(compression)),
	)

	reader, err := NewTypedReader(stream, detected)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := NewWriter(dst, compression)
	if err != nil {
		return err
	}

	pipeReader, pipeWriter := io.Pipe()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		_, err := io.Copy(pipeWriter, contextReader{ctx, reader})
		_ = pipeWriter.CloseWithError(err)

		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		_, err := io.Copy(writer, pipeReader)
		_ = pipeReader.CloseWithError(err)

		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("compress: %w", err)
		}

		err = writer.Close()
		if err != nil {
			return fmt.Errorf("finish compression: %w", err)
		}

		return nil
	})

	return group.Wait() //nolint:wrapcheck
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// contextReader stops reading once the context is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx
	r   io.Reader
}

func (r contextReader) Read(b []byte) (int, error) {
	err := r.ctx.Err()
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	return r.r.Read(b) //nolint:wrapcheck
}
