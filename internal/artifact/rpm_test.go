// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPM_RoundTrip(t *testing.T) {
	producer := &artifact.RPMProducer{
		Target:   artifact.Target{Path: filepath.Join(t.TempDir(), "test-0.0.1-1.x86_64.rpm")},
		Metadata: testMetadata("x86_64"),
		Requires: []string{"bash>=5"},
	}

	input := newHelloArtifact(t)

	require.NoError(t, producer.Validate())
	require.NoError(t, producer.CanProduceFrom(input))

	output, err := producer.ProduceFrom(t.Context(), input)
	require.NoError(t, err)
	require.IsType(t, &artifact.RPMArtifact{}, output)

	rpm := output.(*artifact.RPMArtifact)
	require.NoError(t, rpm.Validate())

	t.Run("nevra", func(t *testing.T) {
		nevra, err := rpm.NEVRA()
		require.NoError(t, err)

		assert.Equal(t, "test", nevra.Name)
		assert.Equal(t, "0.0.1", nevra.Version)
		assert.Equal(t, "1", nevra.Release)
		assert.Equal(t, "x86_64", nevra.Arch)
	})

	t.Run("content", func(t *testing.T) {
		fsys, err := rpm.Extract(t.Context())
		require.NoError(t, err)

		content, err := disk.ReadFile(fsys, "/bin/hello")
		require.NoError(t, err)
		assert.Equal(t, helloScript, string(content))

		meta, err := fsys.Metadata("/bin/hello")
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), meta.Mode)
	})

	t.Run("existing output", func(t *testing.T) {
		err := producer.CanProduceFrom(input)
		require.ErrorIs(t, err, artifact.ErrOutputExists)
	})
}

func TestRPMProducer_Validate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*artifact.RPMProducer)
		expected string
	}{
		{
			name:   "valid",
			modify: func(*artifact.RPMProducer) {},
		},
		{
			name: "empty name",
			modify: func(p *artifact.RPMProducer) {
				p.Metadata.Name = ""
			},
			expected: `package name ""`,
		},
		{
			name: "invalid name",
			modify: func(p *artifact.RPMProducer) {
				p.Metadata.Name = "INVALID NAME"
			},
			expected: `package name "INVALID NAME"`,
		},
		{
			name: "name ending with hyphen",
			modify: func(p *artifact.RPMProducer) {
				p.Metadata.Name = "test-"
			},
			expected: `package name "test-"`,
		},
		{
			name: "version without release",
			modify: func(p *artifact.RPMProducer) {
				p.Version = "0.0.1"
			},
			expected: `version "0.0.1"`,
		},
		{
			name: "invalid version",
			modify: func(p *artifact.RPMProducer) {
				p.Version = "not a version"
			},
			expected: `version "not a version"`,
		},
		{
			name: "empty description",
			modify: func(p *artifact.RPMProducer) {
				p.Description = ""
			},
			expected: "description is empty",
		},
		{
			name: "empty architecture",
			modify: func(p *artifact.RPMProducer) {
				p.Arch = ""
			},
			expected: "architecture is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer := &artifact.RPMProducer{
				Target:   artifact.Target{Path: filepath.Join(t.TempDir(), "test.rpm")},
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

func TestRPMArtifact_Validate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rpm")
	require.NoError(t, os.WriteFile(path, []byte("not an rpm"), 0o600))

	err := artifact.NewRPMArtifact(path).Validate()
	require.ErrorIs(t, err, &artifact.ValidationError{})
}
