// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/drive"
	"github.com/aibor/repack/internal/hostfs"
	"github.com/aibor/repack/internal/memfs"
	"github.com/aibor/repack/internal/offload"
	"github.com/aibor/repack/internal/tempdir"
	diskfs "github.com/diskfs/go-diskfs"
	fsdisk "github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

const (
	ext4MinSize       = 16 << 20
	ext4EntryOverhead = 8 << 10
	ext4LostFound     = "/lost+found"

	// MkfsExt4 is the program used for creating ext4 images.
	MkfsExt4 = "mkfs.ext4"
)

// Ext4Artifact is an ext4 filesystem block image.
type Ext4Artifact struct {
	hostFile
}

// NewExt4Artifact returns the ext4 image at the given host path.
func NewExt4Artifact(path string) *Ext4Artifact {
	return &Ext4Artifact{newHostFile(path)}
}

// open opens the image and its filesystem. The returned image must be closed
// once the filesystem is not used anymore.
func (a *Ext4Artifact) open() (*fsdisk.Disk, filesystem.FileSystem, error) {
	img, err := diskfs.Open(a.path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, nil, fmt.Errorf("open image: %w", err)
	}

	fileSystem, err := img.GetFilesystem(0)
	if err != nil {
		closeImage(img)
		return nil, nil, fmt.Errorf("open filesystem: %w", err)
	}

	return img, fileSystem, nil
}

func closeImage(img *fsdisk.Disk) {
	err := img.Close()
	if err != nil && !errors.Is(err, fs.ErrClosed) {
		slog.Warn("Failed to close image", slog.Any("error", err))
	}
}

// Validate implements [Validator].
func (a *Ext4Artifact) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	if len(v.reasons) > 0 {
		return v.err()
	}

	img, fileSystem, err := a.open()
	if err != nil {
		v.fail(err)
		return v.err()
	}
	defer closeImage(img)

	v.check(fileSystem.Type() == filesystem.TypeExt4, "%s does not contain an ext4 filesystem", a.path)

	return v.err()
}

// Extract implements [Artifact]. An empty lost+found directory is left out.
func (a *Ext4Artifact) Extract(ctx context.Context) (*memfs.FS, error) {
	img, fileSystem, err := a.open()
	if err != nil {
		return nil, err
	}
	defer closeImage(img)

	src := disk.ReadOnly(newExt4Disk(fileSystem))
	defer src.Close()

	fsys := memfs.New()

	err = offload.Do(ctx, func(ctx context.Context) error {
		return drive.CopyBetween(ctx, src, fsys) //nolint:wrapcheck
	})
	if err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}

	err = removeIfEmpty(fsys, ext4LostFound)
	if err != nil {
		return nil, err
	}

	return fsys, nil
}

func removeIfEmpty(fsys *memfs.FS, dir string) error {
	typ, err := disk.TypeOf(fsys, dir)
	if errors.Is(err, disk.ErrNotExist) {
		return nil
	} else if err != nil {
		return err //nolint:wrapcheck
	}

	if typ != disk.TypeDirectory {
		return nil
	}

	for _, err := range fsys.ReadDir(dir) {
		return err //nolint:wrapcheck
	}

	return fsys.RemoveDirAll(dir) //nolint:wrapcheck
}

// Ext4Producer writes ext4 filesystem block images.
//
// The tree is staged in a temporary host directory that is used as initial
// content of the new filesystem by [MkfsExt4]. Without root privileges
// ownership of the staged files can not be set, so all entries are owned by
// the user running repack.
type Ext4Producer struct {
	Target

	// Label is the volume label of the filesystem.
	Label string
}

// Validate implements [Producer].
func (p *Ext4Producer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)

	v.check(len(p.Label) <= 16, "label %q is longer than 16 bytes", p.Label)

	return v.err()
}

// ext4ImageSize returns the size of an image that fits the tree.
func ext4ImageSize(fsys *memfs.FS) (int64, error) {
	var entries int64

	for _, err := range disk.Walk(fsys, "/") {
		if err != nil {
			return 0, fmt.Errorf("walk: %w", err)
		}

		entries++
	}

	size := fsys.Size() + entries*ext4EntryOverhead
	size += size / 4

	return max(size, ext4MinSize), nil
}

// mkfsArgs returns the arguments for creating the filesystem in the image
// at path with the content of dir.
func mkfsArgs(path, dir, label string) []string {
	args := []string{
		"-F",
		"-q",
		"-t", "ext4",
		"-b", "4096",
		"-I", "256",
		"-O", "^has_journal",
		"-d", dir,
		"-E", "root_owner=0:0",
	}

	if label != "" {
		args = append(args, "-L", label)
	}

	return append(args, path)
}

// ProduceFrom implements [Producer].
func (p *Ext4Producer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	mkfs, err := exec.LookPath(MkfsExt4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMkfsFailed, err)
	}

	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	size, err := ext4ImageSize(fsys)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(filepath.Dir(p.Path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	err = os.Remove(p.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove existing output: %w", err)
	}

	slog.Info("Write ext4 image",
		slog.String("path", p.Path),
		slog.Int64("size", size),
	)

	err = tempdir.With(func(dir *tempdir.Dir) error {
		return p.write(ctx, mkfs, fsys, dir.Join("root"), size)
	})
	if err != nil {
		_ = os.Remove(p.Path)
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewExt4Artifact(p.Path), nil
}

func (p *Ext4Producer) write(ctx context.Context, mkfs string, fsys *memfs.FS, stage string, size int64) error {
	err := os.Mkdir(stage, 0o755)
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	opts := p.copyOptions()
	if os.Geteuid() != 0 {
		opts = append(opts, drive.WithoutOwnership())
	}

	err = drive.CopyBetween(ctx, fsys, hostfs.New(stage), opts...)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	err = createSparseFile(p.Path, size)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, mkfs, mkfsArgs(p.Path, stage, p.Label)...)
	cmd.Stderr = &stderr

	err = offload.Do(ctx, func(_ context.Context) error {
		return cmd.Run() //nolint:wrapcheck
	})
	if err != nil {
		return fmt.Errorf("%w: %w: %s", ErrMkfsFailed, err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

func createSparseFile(path string, size int64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}

	err = file.Truncate(size)
	if err != nil {
		err = fmt.Errorf("resize image: %w", err)
	}

	return errors.Join(err, file.Close())
}
