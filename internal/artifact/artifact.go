// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/inject"
	"github.com/aibor/repack/internal/memfs"
)

// Artifact is an immutable packaging unit, like a tarball at a specific path.
type Artifact interface {
	// Name returns the display name of the artifact.
	Name() string

	// Paths returns the host paths the artifact occupies. It is nil for
	// artifacts not backed by host files.
	Paths() []string

	// Extract returns the content of the artifact as new in-memory tree
	// owned by the caller.
	Extract(ctx context.Context) (*memfs.FS, error)
}

// Validator is implemented by artifacts that can check their own
// consistency.
type Validator interface {
	Validate() error
}

// Producer writes the content of a previous [Artifact] into a new artifact of
// its format.
type Producer interface {
	// Name returns the display name of the producer.
	Name() string

	// Injections returns the mutations applied to the content before it is
	// written.
	Injections() []inject.Injection

	// Validate checks the configuration of the producer. It reports all
	// problems at once as [*ValidationError].
	Validate() error

	// CanProduceFrom checks if the producer can run with the given previous
	// artifact.
	CanProduceFrom(previous Artifact) error

	// ProduceFrom creates the new artifact.
	ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error)
}

// Prepare extracts the previous artifact and applies the injections of the
// producer to the extracted tree.
func Prepare(
	ctx context.Context,
	producer Producer,
	previous Artifact,
	opts ...drive.Option,
) (*memfs.FS, error) {
	slog.Debug("Extract artifact",
		slog.String("artifact", previous.Name()),
		slog.String("producer", producer.Name()),
	)

	fsys, err := previous.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", previous.Name(), err)
	}

	err = inject.Apply(ctx, fsys, producer.Injections(), opts...)
	if err != nil {
		return nil, fmt.Errorf("inject: %w", err)
	}

	return fsys, nil
}

// Target is the configuration shared by all producers.
type Target struct {
	// ID is the display name. The base name of Path is used if empty.
	ID string

	// Path is the host path the output is written to.
	Path string

	// Inject are the mutations applied before the output is written.
	Inject []inject.Injection

	// StrictOverwrite fails copies that would replace an existing file
	// instead of overwriting it.
	StrictOverwrite bool
}

// Name implements [Producer].
func (t *Target) Name() string {
	if t.ID != "" {
		return t.ID
	}

	return filepath.Base(t.Path)
}

// Injections implements [Producer].
func (t *Target) Injections() []inject.Injection {
	return t.Inject
}

// CanProduceFrom implements [Producer]. Any previous artifact is accepted.
func (*Target) CanProduceFrom(_ Artifact) error {
	return nil
}

func (t *Target) copyOptions() []drive.Option {
	if t.StrictOverwrite {
		return []drive.Option{drive.WithStrictOverwrite()}
	}

	return nil
}

// validatePath adds a reason to v if the parent directory of the output path
// can not be created.
func (t *Target) validatePath(v *validation) {
	if t.Path == "" {
		v.check(false, "output path is empty")
		return
	}

	parent := filepath.Dir(t.Path)

	err := os.MkdirAll(parent, 0o755)
	v.check(err == nil, "output directory %s can not be created: %v", parent, err)
}

// hostFile is an artifact backed by a single host file.
type hostFile struct {
	name string
	path string
}

func newHostFile(path string) hostFile {
	return hostFile{
		name: filepath.Base(path),
		path: path,
	}
}

// Name implements [Artifact].
func (a *hostFile) Name() string {
	return a.name
}

// Paths implements [Artifact].
func (a *hostFile) Paths() []string {
	return []string{a.path}
}

// Path returns the host path of the artifact.
func (a *hostFile) Path() string {
	return a.path
}

// Validate implements [Validator]. It checks that the file exists and is a
// regular file.
func (a *hostFile) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	return v.err()
}

func (a *hostFile) validateFile(v *validation) {
	info, err := os.Stat(a.path)
	if err != nil {
		v.check(false, "%s does not exist", a.path)
		return
	}

	v.check(info.Mode().IsRegular(), "%s is not a regular file", a.path)
}

// MemoryArtifact is an artifact whose content is held in memory.
type MemoryArtifact struct {
	name string
	fsys *memfs.FS
}

// NewMemoryArtifact wraps the given tree. The tree must not be modified
// afterwards.
func NewMemoryArtifact(name string, fsys *memfs.FS) *MemoryArtifact {
	return &MemoryArtifact{
		name: name,
		fsys: fsys,
	}
}

// Name implements [Artifact].
func (a *MemoryArtifact) Name() string {
	return a.name
}

// Paths implements [Artifact].
func (*MemoryArtifact) Paths() []string {
	return nil
}

// Extract implements [Artifact]. It returns a copy of the tree.
func (a *MemoryArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	fsys := memfs.New()

	err := drive.CopyBetween(ctx, a.fsys, fsys)
	if err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}

	return fsys, nil
}

// EmptyArtifact is an artifact without any content.
type EmptyArtifact struct{}

// Name implements [Artifact].
func (EmptyArtifact) Name() string {
	return "empty"
}

// Paths implements [Artifact].
func (EmptyArtifact) Paths() []string {
	return nil
}

// Extract implements [Artifact].
func (EmptyArtifact) Extract(_ context.Context) (*memfs.FS, error) {
	return memfs.New(), nil
}
