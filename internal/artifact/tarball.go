// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/memfs"
)

// TarballArtifact is a tar archive, optionally compressed.
type TarballArtifact struct {
	hostFile
}

// NewTarballArtifact returns the tarball at the given host path.
func NewTarballArtifact(path string) *TarballArtifact {
	return &TarballArtifact{newHostFile(path)}
}

// Extract implements [Artifact]. The compression is detected from the
// content.
func (a *TarballArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	return extractArchiveFile(ctx, a.path, archive.ReadTar)
}

// TarballProducer writes tar archives.
type TarballProducer struct {
	Target

	// Compression of the archive. If empty, it is derived from the file name
	// extension of the output path.
	Compression compress.Type
}

// Validate implements [Producer].
func (p *TarballProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)
	p.validateCompression(v)

	return v.err()
}

func (p *TarballProducer) compression() compress.Type {
	if p.Compression == "" {
		return compress.TypeForPath(p.Path)
	}

	return p.Compression
}

func (p *TarballProducer) validateCompression(v *validation) {
	compression := p.compression()

	var typ compress.Type

	err := typ.UnmarshalText([]byte(compression))
	v.check(err == nil, "compression %q is invalid", string(compression))

	v.check(compression != compress.Bzip2, "compression %s can not be written", string(compression))
}

// ProduceFrom implements [Producer].
func (p *TarballProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	slog.Info("Write tarball",
		slog.String("path", p.Path),
		slog.String("compression", string(p.compression())),
	)

	err = writeOutput(p.Path, func(w io.Writer) error {
		return writeArchive(ctx, fsys, w, p.compression(), tarWriter)
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewTarballArtifact(p.Path), nil
}
