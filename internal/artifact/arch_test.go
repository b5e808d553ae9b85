// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArch_RoundTrip(t *testing.T) {
	t.Setenv(artifact.SourceDateEpochEnv, "1700000000")

	producer := &artifact.ArchProducer{
		Target:   artifact.Target{Path: filepath.Join(t.TempDir(), "test-0.0.1-1-x86_64.pkg.tar.zst")},
		Metadata: testMetadata("x86_64"),
	}

	require.NoError(t, producer.Validate())

	output, err := producer.ProduceFrom(t.Context(), newHelloArtifact(t))
	require.NoError(t, err)
	require.IsType(t, &artifact.ArchArtifact{}, output)

	pkg := output.(*artifact.ArchArtifact)
	require.NoError(t, pkg.Validate())

	assert.Equal(t, compress.Zstd, detectCompression(t, producer.Path))

	expected := &artifact.PkgInfo{
		PkgName:   "test",
		PkgBase:   "test",
		PkgVer:    "0.0.1-1",
		PkgDesc:   "test package",
		BuildDate: 1700000000,
		Packager:  "Jane Doe <jane@example.org>",
		Size:      int64(len(helloScript)),
		Arch:      "x86_64",
		License:   []string{"GPL-3.0-or-later"},
		Provides:  []string{"test"},
	}

	info, err := pkg.PkgInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, expected, info)

	t.Run("read from file", func(t *testing.T) {
		info, err := artifact.NewArchArtifact(producer.Path).PkgInfo(t.Context())
		require.NoError(t, err)
		assert.Equal(t, expected, info)
	})

	t.Run("content", func(t *testing.T) {
		fsys, err := pkg.Extract(t.Context())
		require.NoError(t, err)

		content, err := disk.ReadFile(fsys, "/bin/hello")
		require.NoError(t, err)
		assert.Equal(t, helloScript, string(content))

		_, err = fsys.Metadata("/.PKGINFO")
		require.ErrorIs(t, err, disk.ErrNotExist)
	})
}

func TestArchArtifact_Validate(t *testing.T) {
	dir := t.TempDir()

	tarball := &artifact.TarballProducer{
		Target: artifact.Target{Path: filepath.Join(dir, "plain.pkg.tar.zst")},
	}
	_, err := tarball.ProduceFrom(t.Context(), newHelloArtifact(t))
	require.NoError(t, err)

	wrongName := filepath.Join(dir, "hello.tar")
	require.NoError(t, os.WriteFile(wrongName, nil, 0o600))

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "missing .PKGINFO",
			path:     tarball.Path,
			expected: "does not contain a valid .PKGINFO",
		},
		{
			name:     "wrong extension",
			path:     wrongName,
			expected: "does not have a .pkg.tar extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := artifact.NewArchArtifact(tt.path).Validate()
			require.ErrorIs(t, err, &artifact.ValidationError{})
			assert.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestArchProducer_Validate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*artifact.ArchProducer)
		expected string
	}{
		{
			name:   "valid",
			modify: func(*artifact.ArchProducer) {},
		},
		{
			name: "name",
			modify: func(p *artifact.ArchProducer) {
				p.Metadata.Name = "-test"
			},
			expected: `package name "-test"`,
		},
		{
			name: "name with at sign",
			modify: func(p *artifact.ArchProducer) {
				p.Metadata.Name = "@test"
			},
			expected: `package name "@test"`,
		},
		{
			name: "upper case version",
			modify: func(p *artifact.ArchProducer) {
				p.Version = "1.0RC-1"
			},
			expected: `version "1.0RC-1"`,
		},
		{
			name: "version without release",
			modify: func(p *artifact.ArchProducer) {
				p.Version = "0.0.1"
			},
			expected: `version "0.0.1"`,
		},
		{
			name: "deb architecture",
			modify: func(p *artifact.ArchProducer) {
				p.Arch = "amd64"
			},
			expected: `architecture "amd64" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer := &artifact.ArchProducer{
				Target:   artifact.Target{Path: filepath.Join(t.TempDir(), "test.pkg.tar.zst")},
				Metadata: testMetadata("x86_64"),
			}
			tt.modify(producer)

			err := producer.Validate()

			if tt.expected == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, &artifact.ValidationError{})
			assert.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestPkgInfo_UnmarshalText(t *testing.T) {
	var info artifact.PkgInfo

	err := info.UnmarshalText([]byte("pkgname = test\nsize = many\n"))
	require.ErrorIs(t, err, artifact.ErrPkgInfoInvalid)

	err = info.UnmarshalText([]byte("pkgname test\n"))
	require.ErrorIs(t, err, artifact.ErrPkgInfoInvalid)
}
