// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
	"github.com/aibor/repack/internal/offload"
	"github.com/google/rpmpack"
	rpmutils "github.com/sassoftware/go-rpmutils"
)

const (
	unixTypeMask    = 0o170000
	unixTypeDir     = 0o040000
	unixTypeRegular = 0o100000
	unixTypeSymlink = 0o120000
)

// RPMArtifact is an RPM package.
type RPMArtifact struct {
	hostFile
}

// NewRPMArtifact returns the RPM package at the given host path.
func NewRPMArtifact(path string) *RPMArtifact {
	return &RPMArtifact{newHostFile(path)}
}

// NEVRA returns the name, epoch, version, release and architecture of the
// package.
func (a *RPMArtifact) NEVRA() (*rpmutils.NEVRA, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	rpm, err := rpmutils.ReadRpm(file)
	if err != nil {
		return nil, fmt.Errorf("read rpm: %w", err)
	}

	nevra, err := rpm.Header.GetNEVRA()
	if err != nil {
		return nil, fmt.Errorf("read rpm header: %w", err)
	}

	return nevra, nil
}

// Validate implements [Validator].
func (a *RPMArtifact) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	if len(v.reasons) > 0 {
		return v.err()
	}

	_, err := a.NEVRA()
	v.fail(err)

	return v.err()
}

// Extract implements [Artifact]. The payload is decompressed and its entries
// are added to the tree. Ownership is not preserved, since the payload only
// carries user and group names.
func (a *RPMArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	fsys := memfs.New()

	err = offload.Do(ctx, func(ctx context.Context) error {
		rpm, err := rpmutils.ReadRpm(file)
		if err != nil {
			return fmt.Errorf("read rpm: %w", err)
		}

		payload, err := rpm.PayloadReaderExtended()
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		for {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			info, err := payload.Next()
			if errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return fmt.Errorf("read payload entry: %w", err)
			}

			err = addPayloadEntry(fsys, info, payload)
			if err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return fsys, nil
}

func addPayloadEntry(fsys *memfs.FS, info rpmutils.FileInfo, content io.Reader) error {
	name := disk.Clean(info.Name())
	mode := uint32(info.Mode()) //nolint:gosec
	perm := disk.PermFromUnix(mode)
	mtime := time.Unix(int64(info.Mtime()), 0)

	var err error

	switch mode & unixTypeMask {
	case unixTypeDir:
		err = fsys.CreateDirAll(name)
		if err == nil {
			err = fsys.SetPermissions(name, perm)
		}
	case unixTypeSymlink:
		err = fsys.CreateDirAll(disk.Parent(name))
		if err == nil {
			err = fsys.Symlink(info.Linkname(), name)
		}

		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}

		return nil
	case unixTypeRegular:
		err = disk.WriteFileFrom(fsys, name, content, perm)
	default:
		slog.Warn("Skip unsupported payload entry",
			slog.String("path", name),
			slog.String("mode", strconv.FormatUint(uint64(mode), 8)),
		)

		return nil
	}

	if err == nil {
		err = fsys.Chtimes(name, mtime)
	}

	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	return nil
}

// RPMProducer writes RPM packages with zstd compressed payload.
type RPMProducer struct {
	Target
	Metadata

	// Requires lists the package relations, like "bash >= 5".
	Requires []string
}

// Name implements [Producer].
func (p *RPMProducer) Name() string {
	return p.Target.Name()
}

// Validate implements [Producer].
func (p *RPMProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)
	p.validateRPM(v)

	var relations rpmpack.Relations

	for _, require := range p.Requires {
		v.fail(relations.Set(require))
	}

	return v.err()
}

// CanProduceFrom implements [Producer]. An existing output is never
// replaced.
func (p *RPMProducer) CanProduceFrom(_ Artifact) error {
	_, err := os.Lstat(p.Path)
	if err == nil {
		return fmt.Errorf("%s: %w", p.Path, ErrOutputExists)
	}

	return nil
}

// versionRelease splits the version into RPM version and release. The
// release defaults to 1.
func (p *RPMProducer) versionRelease() (string, string) {
	idx := strings.LastIndex(p.Version, "-")
	if idx < 1 {
		return p.Version, "1"
	}

	return p.Version[:idx], p.Version[idx+1:]
}

// ProduceFrom implements [Producer].
func (p *RPMProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	buildTime, err := BuildTime()
	if err != nil {
		return nil, err
	}

	var requires rpmpack.Relations

	for _, require := range p.Requires {
		err := requires.Set(require)
		if err != nil {
			return nil, fmt.Errorf("requires %q: %w", require, err)
		}
	}

	version, release := p.versionRelease()

	rpm, err := rpmpack.NewRPM(rpmpack.RPMMetaData{
		Name:        p.Metadata.Name,
		Summary:     firstLine(p.Description),
		Description: p.Description,
		Version:     version,
		Release:     release,
		Arch:        p.Arch,
		OS:          "linux",
		URL:         p.URL,
		Packager:    p.Author,
		Licence:     p.License,
		Compressor:  "zstd",
		BuildTime:   buildTime,
		Requires:    requires,
	})
	if err != nil {
		return nil, fmt.Errorf("create rpm: %w", err)
	}

	err = addRPMFiles(rpm, fsys, buildTime)
	if err != nil {
		return nil, err
	}

	slog.Info("Write RPM package",
		slog.String("path", p.Path),
		slog.String("package", p.Metadata.Name),
		slog.String("version", p.Version),
	)

	err = writeOutput(p.Path, func(w io.Writer) error {
		return offload.Do(ctx, func(_ context.Context) error {
			return rpm.Write(w) //nolint:wrapcheck
		})
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewRPMArtifact(p.Path), nil
}

// addRPMFiles adds all entries of the tree except for the root directory in
// walk order.
func addRPMFiles(rpm *rpmpack.RPM, fsys *memfs.FS, buildTime time.Time) error {
	for entry, err := range disk.Walk(fsys, "/") {
		if err != nil {
			return fmt.Errorf("walk: %w", err)
		}

		if entry.Path == "/" {
			continue
		}

		meta, err := fsys.SymlinkMetadata(entry.Path)
		if err != nil {
			return err //nolint:wrapcheck
		}

		file := rpmpack.RPMFile{
			Name:  entry.Path,
			Owner: accountName(meta.UID),
			Group: accountName(meta.GID),
			MTime: rpmTime(meta.ModTime, buildTime),
		}

		perm := uint(disk.UnixPerm(meta.Mode))

		switch entry.Type {
		case disk.TypeDirectory:
			file.Mode = unixTypeDir | perm
		case disk.TypeSymlink:
			target, err := fsys.ReadLink(entry.Path)
			if err != nil {
				return err //nolint:wrapcheck
			}

			file.Mode = unixTypeSymlink | uint(fs.ModePerm)
			file.Body = []byte(target)
		case disk.TypeRegular:
			content, err := disk.ReadFile(fsys, entry.Path)
			if err != nil {
				return err
			}

			file.Mode = unixTypeRegular | perm
			file.Body = content
		default:
			continue
		}

		rpm.AddFile(file)
	}

	return nil
}

// accountName returns the name recorded for the given user or group ID.
func accountName(id int) string {
	if id == 0 {
		return "root"
	}

	return strconv.Itoa(id)
}

// rpmTime returns the modification time clamped to the build time.
func rpmTime(mtime, buildTime time.Time) uint32 {
	if _, set, _ := sourceDateEpoch(); set && mtime.After(buildTime) {
		mtime = buildTime
	}

	return uint32(max(mtime.Unix(), 0)) //nolint:gosec
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
