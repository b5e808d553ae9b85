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
	"github.com/aibor/repack/internal/memfs"
)

// CPIOArtifact is a cpio archive in SVR4 "newc" format, optionally
// compressed, like an initramfs.
type CPIOArtifact struct {
	hostFile
}

// NewCPIOArtifact returns the cpio archive at the given host path.
func NewCPIOArtifact(path string) *CPIOArtifact {
	return &CPIOArtifact{newHostFile(path)}
}

// Extract implements [Artifact]. The compression is detected from the
// content.
func (a *CPIOArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	return extractArchiveFile(ctx, a.path, archive.ReadCPIO)
}

// CPIOProducer writes cpio archives.
type CPIOProducer struct {
	TarballProducer
}

// ProduceFrom implements [Producer].
func (p *CPIOProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	compression := p.compression()

	slog.Info("Write cpio archive",
		slog.String("path", p.Path),
		slog.String("compression", string(compression)),
	)

	err = writeOutput(p.Path, func(w io.Writer) error {
		return writeArchive(ctx, fsys, w, compression, cpioWriter)
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewCPIOArtifact(p.Path), nil
}
