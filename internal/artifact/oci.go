// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/hostfs"
	"github.com/aibor/repack/internal/memfs"
	"github.com/aibor/repack/internal/tempdir"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
)

const (
	ociLayoutFile = "oci-layout"
	ociIndexFile  = "index.json"
	ociBlobsDir   = "blobs"
	ociRefName    = "org.opencontainers.image.ref.name"
)

// OCIArtifact is an OCI image layout packed into a tar archive.
type OCIArtifact struct {
	hostFile
}

// NewOCIArtifact returns the packed OCI image layout at the given host path.
func NewOCIArtifact(path string) *OCIArtifact {
	return &OCIArtifact{newHostFile(path)}
}

// Extract implements [Artifact]. The layers of the first image of the layout
// are flattened into a single tree.
func (a *OCIArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	var fsys *memfs.FS

	err := tempdir.With(func(dir *tempdir.Dir) error {
		err := a.unpack(ctx, dir.Path())
		if err != nil {
			return err
		}

		index, err := layout.ImageIndexFromPath(dir.Path())
		if err != nil {
			return fmt.Errorf("read image layout: %w", err)
		}

		img, err := firstImage(index)
		if err != nil {
			return err
		}

		imgDigest, err := img.Digest()
		if err != nil {
			return fmt.Errorf("image digest: %w", err)
		}

		slog.Debug("Extract image",
			slog.String("artifact", a.name),
			slog.String("digest", imgDigest.String()),
		)

		content := mutate.Extract(img)
		defer content.Close()

		fsys, err = extractArchive(ctx, content, archive.ReadTar)

		return err
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return fsys, nil
}

// unpack writes the layout into the given host directory.
func (a *OCIArtifact) unpack(ctx context.Context, dir string) error {
	layoutFS, err := extractArchiveFile(ctx, a.path, archive.ReadTar)
	if err != nil {
		return err
	}

	err = drive.CopyBetween(ctx, layoutFS, hostfs.New(dir), drive.WithoutOwnership())
	if err != nil {
		return fmt.Errorf("unpack image layout: %w", err)
	}

	return nil
}

// firstImage returns the first image of the index. Nested indexes are
// descended into.
func firstImage(index v1.ImageIndex) (v1.Image, error) {
	manifest, err := index.IndexManifest()
	if err != nil {
		return nil, fmt.Errorf("read index manifest: %w", err)
	}

	if len(manifest.Manifests) == 0 {
		return nil, ErrNoManifest
	}

	desc := manifest.Manifests[0]

	if desc.MediaType.IsIndex() {
		nested, err := index.ImageIndex(desc.Digest)
		if err != nil {
			return nil, fmt.Errorf("read index %s: %w", desc.Digest, err)
		}

		return firstImage(nested)
	}

	img, err := index.Image(desc.Digest)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", desc.Digest, err)
	}

	return img, nil
}

// Validate implements [Validator]. The layout must be complete and every blob
// must match its digest.
func (a *OCIArtifact) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	if len(v.reasons) > 0 {
		return v.err()
	}

	fsys, err := extractArchiveFile(context.Background(), a.path, archive.ReadTar)
	if err != nil {
		v.fail(err)
		return v.err()
	}

	for _, required := range []string{ociLayoutFile, ociIndexFile} {
		exists, err := disk.Exists(fsys, required)
		v.check(err == nil && exists, "%s is missing", required)
	}

	blobs, err := disk.Exists(fsys, ociBlobsDir)
	if err != nil || !blobs {
		v.check(false, "%s is missing", ociBlobsDir)
		return v.err()
	}

	for entry, err := range disk.Walk(fsys, ociBlobsDir) {
		if err != nil {
			v.fail(err)
			break
		}

		if entry.Type == disk.TypeRegular {
			v.fail(verifyBlob(fsys, entry.Path))
		}
	}

	return v.err()
}

// verifyBlob checks the content of the blob at blobs/<algorithm>/<encoded>.
func verifyBlob(fsys *memfs.FS, blob string) error {
	parts := strings.Split(disk.Rel(blob), "/")
	if len(parts) != 3 {
		return fmt.Errorf("blob %s: unexpected location", blob)
	}

	expected := digest.NewDigestFromEncoded(digest.Algorithm(parts[1]), parts[2])

	err := expected.Validate()
	if err != nil {
		return fmt.Errorf("blob %s: %w", blob, err)
	}

	file, err := fsys.OpenFile(blob, disk.OpenRead)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer file.Close()

	verifier := expected.Verifier()

	_, err = io.Copy(verifier, file)
	if err != nil {
		return fmt.Errorf("blob %s: %w", blob, err)
	}

	if !verifier.Verified() {
		return fmt.Errorf("blob %s: %w", blob, ErrDigestMismatch)
	}

	return nil
}

// OCIProducer writes an OCI image layout packed into a tar archive. The tree
// is added as single layer.
type OCIProducer struct {
	Target

	// Image is the reference name annotated in the index, like
	// "example:latest".
	Image string

	// BaseImage is pulled from its registry and used as base. An empty image
	// is used if not set.
	BaseImage string

	// Arch is the image architecture in OCI naming. Defaults to the host
	// architecture.
	Arch string

	Entrypoint []string
	Cmd        []string
	Env        []string
}

func (p *OCIProducer) arch() string {
	if p.Arch == "" {
		return runtime.GOARCH
	}

	return p.Arch
}

// Validate implements [Producer].
func (p *OCIProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)

	if p.BaseImage != "" {
		_, err := name.ParseReference(p.BaseImage)
		v.check(err == nil, "base image %q is invalid: %v", p.BaseImage, err)
	}

	for _, env := range p.Env {
		v.check(strings.Contains(env, "="), "environment variable %q must be KEY=VALUE", env)
	}

	return v.err()
}

func (p *OCIProducer) baseImage(ctx context.Context) (v1.Image, error) {
	if p.BaseImage == "" {
		return empty.Image, nil
	}

	ref, err := name.ParseReference(p.BaseImage)
	if err != nil {
		return nil, fmt.Errorf("invalid base image reference: %w", err)
	}

	slog.Info("Pull base image", slog.String("image", ref.String()))

	platform := v1.Platform{OS: "linux", Architecture: p.arch()}

	img, err := remote.Image(ref, remote.WithContext(ctx), remote.WithPlatform(platform))
	if err != nil {
		return nil, fmt.Errorf("fetch base image: %w", err)
	}

	return img, nil
}

// image returns the base image with the tree added as layer.
func (p *OCIProducer) image(ctx context.Context, fsys *memfs.FS) (v1.Image, error) {
	buildTime, err := BuildTime()
	if err != nil {
		return nil, err
	}

	base, err := p.baseImage(ctx)
	if err != nil {
		return nil, err
	}

	var layerContent bytes.Buffer

	err = writeArchive(ctx, fsys, &layerContent, compress.Gzip, tarWriter)
	if err != nil {
		return nil, fmt.Errorf("write layer: %w", err)
	}

	layer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(layerContent.Bytes())), nil
	}, tarball.WithMediaType(types.OCILayer))
	if err != nil {
		return nil, fmt.Errorf("create layer: %w", err)
	}

	img, err := mutate.AppendLayers(base, layer)
	if err != nil {
		return nil, fmt.Errorf("append layer: %w", err)
	}

	if p.BaseImage == "" {
		img = mutate.MediaType(img, types.OCIManifestSchema1)
		img = mutate.ConfigMediaType(img, types.OCIConfigJSON)
	}

	configFile, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	configFile = configFile.DeepCopy()
	configFile.OS = "linux"
	configFile.Architecture = p.arch()
	configFile.Created = v1.Time{Time: buildTime}

	if len(p.Entrypoint) > 0 {
		configFile.Config.Entrypoint = p.Entrypoint
	}

	if len(p.Cmd) > 0 {
		configFile.Config.Cmd = p.Cmd
	}

	configFile.Config.Env = append(configFile.Config.Env, p.Env...)

	img, err = mutate.ConfigFile(img, configFile)
	if err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	return img, nil
}

// ProduceFrom implements [Producer].
func (p *OCIProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	img, err := p.image(ctx, fsys)
	if err != nil {
		return nil, err
	}

	var annotations map[string]string
	if p.Image != "" {
		annotations = map[string]string{ociRefName: p.Image}
	}

	err = tempdir.With(func(dir *tempdir.Dir) error {
		path, err := layout.Write(dir.Path(), empty.Index)
		if err != nil {
			return fmt.Errorf("create image layout: %w", err)
		}

		err = path.AppendImage(img, layout.WithAnnotations(annotations))
		if err != nil {
			return fmt.Errorf("write image: %w", err)
		}

		slog.Info("Write OCI image",
			slog.String("path", p.Path),
			slog.String("image", p.Image),
		)

		return writeOutput(p.Path, func(w io.Writer) error {
			return writeArchive(ctx, hostfs.New(dir.Path()), w, compress.None, tarWriter,
				archive.WithOwner(0, 0))
		})
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewOCIArtifact(p.Path), nil
}
