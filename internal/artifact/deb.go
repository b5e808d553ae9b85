// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aibor/repack/internal/archive"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
	"github.com/blakesmith/ar"
)

const (
	debBinaryMember  = "debian-binary"
	debBinaryVersion = "2.0\n"
	debControlPrefix = "control.tar"
	debDataPrefix    = "data.tar"
)

var debDataCompressions = []compress.Type{
	compress.None,
	compress.Gzip,
	compress.Xz,
	compress.Zstd,
}

// DebArtifact is a Debian binary package.
type DebArtifact struct {
	hostFile
}

// NewDebArtifact returns the Debian package at the given host path.
func NewDebArtifact(path string) *DebArtifact {
	return &DebArtifact{newHostFile(path)}
}

// Extract implements [Artifact]. It returns the content of the data member.
func (a *DebArtifact) Extract(ctx context.Context) (*memfs.FS, error) {
	return a.extractMember(ctx, debDataPrefix)
}

// ControlMember returns the content of the control member of the package.
func (a *DebArtifact) ControlMember(ctx context.Context) (*memfs.FS, error) {
	return a.extractMember(ctx, debControlPrefix)
}

// Control returns the fields of the control file of the package.
func (a *DebArtifact) Control(ctx context.Context) (map[string]string, error) {
	fsys, err := a.ControlMember(ctx)
	if err != nil {
		return nil, err
	}

	content, err := disk.ReadFile(fsys, "control")
	if err != nil {
		return nil, fmt.Errorf("read control: %w", err)
	}

	return parseControl(content), nil
}

// Validate implements [Validator].
func (a *DebArtifact) Validate() error {
	v := newValidation(a.name)
	a.validateFile(v)

	if len(v.reasons) > 0 {
		return v.err()
	}

	file, err := os.Open(a.path)
	if err != nil {
		v.fail(err)
		return v.err()
	}
	defer file.Close()

	reader := ar.NewReader(file)

	header, err := reader.Next()
	if err != nil {
		v.fail(fmt.Errorf("read ar header: %w", err))
		return v.err()
	}

	version, err := io.ReadAll(reader)
	v.check(err == nil && memberName(header) == debBinaryMember && string(version) == debBinaryVersion,
		"first member is not %s with format %q", debBinaryMember, strings.TrimSpace(debBinaryVersion))

	return v.err()
}

// extractMember extracts the first tar member with the given name prefix.
func (a *DebArtifact) extractMember(ctx context.Context, prefix string) (*memfs.FS, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	reader := ar.NewReader(file)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s.*: %w", prefix, ErrMemberNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("read ar header: %w", err)
		}

		name := memberName(header)
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		slog.Debug("Extract package member",
			slog.String("package", a.name),
			slog.String("member", name),
		)

		return extractArchive(ctx, reader, archive.ReadTar)
	}
}

// memberName returns the ar member name without the GNU terminator.
func memberName(header *ar.Header) string {
	return strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
}

// DebProducer writes Debian binary packages.
type DebProducer struct {
	Target
	Metadata

	// Depends lists the package relations written into the Depends field.
	Depends []string

	// Prerm and Postinst are maintainer scripts added to the control
	// member if not empty.
	Prerm    string
	Postinst string

	// Compression of the data member. Defaults to xz.
	Compression compress.Type
}

// Name implements [Producer].
func (p *DebProducer) Name() string {
	return p.Target.Name()
}

func (p *DebProducer) compression() compress.Type {
	if p.Compression == "" {
		return compress.Xz
	}

	return p.Compression
}

// Validate implements [Producer].
func (p *DebProducer) Validate() error {
	v := newValidation(p.Name())
	p.validatePath(v)
	p.validateDeb(v)

	compression := p.compression()
	v.check(slices.Contains(debDataCompressions, compression),
		"compression %s is not supported for data member", string(compression))

	return v.err()
}

// ProduceFrom implements [Producer].
func (p *DebProducer) ProduceFrom(ctx context.Context, previous Artifact) (Artifact, error) {
	fsys, err := Prepare(ctx, p, previous, p.copyOptions()...)
	if err != nil {
		return nil, err
	}

	buildTime, err := BuildTime()
	if err != nil {
		return nil, err
	}

	control, err := p.controlTree(fsys, buildTime)
	if err != nil {
		return nil, err
	}

	opts := []archive.StreamOption{archive.WithPrefix("."), archive.WithOwner(0, 0)}

	var controlTar, dataTar bytes.Buffer

	err = writeArchive(ctx, control, &controlTar, compress.Gzip, tarWriter, opts...)
	if err != nil {
		return nil, fmt.Errorf("write control member: %w", err)
	}

	err = writeArchive(ctx, fsys, &dataTar, p.compression(), tarWriter, opts...)
	if err != nil {
		return nil, fmt.Errorf("write data member: %w", err)
	}

	slog.Info("Write Debian package",
		slog.String("path", p.Path),
		slog.String("package", p.Metadata.Name),
		slog.String("version", p.Version),
	)

	members := []struct {
		name    string
		content []byte
	}{
		{debBinaryMember, []byte(debBinaryVersion)},
		{debControlPrefix + compress.Gzip.Extension(), controlTar.Bytes()},
		{debDataPrefix + p.compression().Extension(), dataTar.Bytes()},
	}

	err = writeOutput(p.Path, func(w io.Writer) error {
		writer := ar.NewWriter(w)

		err := writer.WriteGlobalHeader()
		if err != nil {
			return fmt.Errorf("write ar header: %w", err)
		}

		for _, member := range members {
			err := writer.WriteHeader(&ar.Header{
				Name:    member.name,
				ModTime: buildTime,
				Mode:    0o644,
				Size:    int64(len(member.content)),
			})
			if err != nil {
				return fmt.Errorf("write ar header for %s: %w", member.name, err)
			}

			_, err = writer.Write(member.content)
			if err != nil {
				return fmt.Errorf("write %s: %w", member.name, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	return NewDebArtifact(p.Path), nil
}

// controlTree returns the content of the control member for the given data
// tree.
func (p *DebProducer) controlTree(fsys *memfs.FS, buildTime time.Time) (*memfs.FS, error) {
	sums, err := md5sums(fsys)
	if err != nil {
		return nil, err
	}

	control := memfs.New()

	files := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{"control", p.controlFile(fsys.Size()), 0o644},
		{"md5sums", sums, 0o644},
		{"prerm", p.Prerm, 0o755},
		{"postinst", p.Postinst, 0o755},
	}

	for _, file := range files {
		if file.content == "" {
			continue
		}

		err := disk.WriteFile(control, file.name, []byte(file.content), file.mode)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", file.name, err)
		}

		err = control.Chtimes(file.name, buildTime)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", file.name, err)
		}
	}

	err = control.Chtimes("/", buildTime)
	if err != nil {
		return nil, fmt.Errorf("set control time: %w", err)
	}

	return control, nil
}

func (p *DebProducer) controlFile(installedSize int64) string {
	var b strings.Builder

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
	}

	field("Package", p.Metadata.Name)
	field("Version", p.Version)
	field("Architecture", p.Arch)
	field("Maintainer", p.Author)
	field("Installed-Size", strconv.FormatInt(installedSize, 10))
	field("Depends", strings.Join(p.Depends, ", "))
	field("Homepage", p.URL)
	field("Description", formatDescription(p.Description))

	return b.String()
}

// formatDescription folds a multi-line description into the continuation
// line format of control files.
func formatDescription(description string) string {
	lines := strings.Split(strings.TrimSpace(description), "\n")

	for idx, line := range lines[1:] {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			line = "."
		}

		lines[idx+1] = " " + line
	}

	return strings.Join(lines, "\n")
}

// md5sums returns the md5sums control file for all regular files.
func md5sums(fsys *memfs.FS) (string, error) {
	var b strings.Builder

	for entry, err := range disk.Walk(fsys, "/") {
		if err != nil {
			return "", fmt.Errorf("walk: %w", err)
		}

		if entry.Type != disk.TypeRegular {
			continue
		}

		content, err := disk.ReadFile(fsys, entry.Path)
		if err != nil {
			return "", fmt.Errorf("checksum: %w", err)
		}

		fmt.Fprintf(&b, "%x  %s\n", md5.Sum(content), disk.Rel(entry.Path)) //nolint:gosec
	}

	return b.String(), nil
}

// parseControl parses the fields of a control file. Continuation lines are
// appended to the value of the preceding field.
func parseControl(content []byte) map[string]string {
	fields := map[string]string{}

	var last string

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if last != "" {
				fields[last] += "\n" + strings.TrimSpace(line)
			}

			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		last = strings.TrimSpace(key)
		fields[last] = strings.TrimSpace(value)
	}

	return fields
}
