// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
)

const pkgInfoFile = ".PKGINFO"

// archMetadataFiles are package database files in the root of Arch packages
// that are not part of the installed content.
var archMetadataFiles = []string{
	pkgInfoFile,
	".BUILDINFO",
	".MTREE",
	".INSTALL",
}

// PkgInfo is the content of the .PKGINFO file of Arch Linux packages.
type PkgInfo struct {
	PkgName   string
	PkgBase   string
	PkgVer    string
	PkgDesc   string
	URL       string
	BuildDate int64
	Packager  string
	Size      int64
	Arch      string
	License   []string
	Provides  []string
	Depends   []string
}

// MarshalText implements [encoding.TextMarshaler].
func (i *PkgInfo) MarshalText() ([]byte, error) {
	var b bytes.Buffer

	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s = %s\n", key, value)
		}
	}

	b.WriteString("# generated by repack\n")
	field("pkgname", i.PkgName)
	field("pkgbase", i.PkgBase)
	field("pkgver", i.PkgVer)
	field("pkgdesc", i.PkgDesc)
	field("url", i.URL)
	field("builddate", strconv.FormatInt(i.BuildDate, 10))
	field("packager", i.Packager)
	field("size", strconv.FormatInt(i.Size, 10))
	field("arch", i.Arch)

	for _, license := range i.License {
		field("license", license)
	}

	for _, provides := range i.Provides {
		field("provides", provides)
	}

	for _, depends := range i.Depends {
		field("depend", depends)
	}

	return b.Bytes(), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Unknown keys are
// ignored.
func (i *PkgInfo) UnmarshalText(text []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("%w: %q", ErrPkgInfoInvalid, line)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error

		switch key {
		case "pkgname":
			i.PkgName = value
		case "pkgbase":
			i.PkgBase = value
		case "pkgver":
			i.PkgVer = value
		case "pkgdesc":
			i.PkgDesc = value
		case "url":
			i.URL = value
		case "builddate":
			i.BuildDate, err = strconv.ParseInt(value, 10, 64)
		case "packager":
			i.Packager = value
		case "size":
			i.Size, err = strconv.ParseInt(value, 10, 64)
		case "arch":
			i.Arch = value
		case "license":
			i.License = append(i.License, value)
		case "provides":
			i.Provides = append(i.Provides, value)
		case "depend":
			i.Depends = append(i.Depends, value)
		}

		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPkgInfoInvalid, key, err)
		}
	}

	return scanner.Err() //nolint:wrapcheck
}

// ArchArtifact is an Arch Linux package.
type ArchArtifact struct {
	hostFile

	pkgInfo *PkgInfo
}

// NewArchArtifact returns the Arch Linux package at the given host path.
func NewArchArtifact(path string) *ArchArtifact {
	return &ArchArtifact{hostFile: newHostFile(path)}
}

// Extract implements [Artifact]. Package metadata files are not part of the
// returned tree.
func (a *ArchArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	fsys, err := extractArchiveFile(ctx, a.path, archive.ReadTar)
	if err != nil {
		return nil, err
	}

	for _, name := range archMetadataFiles {
		err := fsys.RemoveFile(name)
		if err != nil && !errors.Is(err, disk.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", name, err)
		}
	}

	return fsys, nil
}

// PkgInfo returns the parsed .PKGINFO of the package. It is read from the
// package if it was not produced in this run.
func (a *ArchArtifact) PkgInfo(ctx context.Context) (*PkgInfo, error) {
	if a.pkgInfo != nil {
		return a.pkgInfo, nil
	}

	fsys, err := extractArchiveFile(ctx, a.path, archive.ReadTar)
	if err != nil {
		return nil, err
	}

	content, err := disk.ReadFile(fsys, pkgInfoFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pkgInfoFile, err)
	}

	var info PkgInfo

	err = info.UnmarshalText(content)
	if err != nil {
		return nil, err
	}

	a.pkgInfo = &info

	return a.pkgInfo, nil
}

// Validate implements [Validator].
func (a *ArchArtifact) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	v.check(strings.Contains(filepath.Base(a.path), ".pkg.tar"),
		"%s does not have a .pkg.tar extension", a.path)

	if len(v.reasons) > 0 {
		return v.err()
	}

	_, err := a.PkgInfo(context.Background())
	v.check(err == nil, "%s does not contain a valid %s: %v", a.path, pkgInfoFile, err)

	return v.err()
}

// ArchProducer writes Arch Linux packages.
type ArchProducer struct {
	Target
	Metadata

	// Depends lists the packages the package depends on.
	Depends []string
}

// Name implements [Producer].
func (p *ArchProducer) Name() string {
	return p.Target.Name()
}

// Validate implements [Producer].
func (p *ArchProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)
	p.validateArch(v)

	return v.err()
}

func (p *ArchProducer) pkgInfo(size int64, buildTime time.Time) *PkgInfo {
	info := &PkgInfo{
		PkgName:   p.Metadata.Name,
		PkgBase:   p.Metadata.Name,
		PkgVer:    p.Version,
		PkgDesc:   firstLine(p.Description),
		URL:       p.URL,
		BuildDate: buildTime.Unix(),
		Packager:  p.Author,
		Size:      size,
		Arch:      p.Arch,
		Provides:  []string{p.Metadata.Name},
		Depends:   p.Depends,
	}

	if p.License != "" {
		info.License = []string{p.License}
	}

	return info
}

// ProduceFrom implements [Producer].
func (p *ArchProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	buildTime, err := BuildTime()
	if err != nil {
		return nil, err
	}

	info := p.pkgInfo(fsys.Size(), buildTime)

	content, err := info.MarshalText()
	if err != nil {
		return nil, err
	}

	err = disk.WriteFile(fsys, pkgInfoFile, content, 0o644)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", pkgInfoFile, err)
	}

	err = fsys.Chtimes(pkgInfoFile, buildTime)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", pkgInfoFile, err)
	}

	slog.Info("Write Arch Linux package",
		slog.String("path", p.Path),
		slog.String("package", info.PkgName),
		slog.String("version", info.PkgVer),
	)

	err = writeOutput(p.Path, func(w io.Writer) error {
		return writeArchive(ctx, fsys, w, compress.Zstd, tarWriter, archive.WithOwner(0, 0))
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return &ArchArtifact{
		hostFile: newHostFile(p.Path),
		pkgInfo:  info,
	}, nil
}
