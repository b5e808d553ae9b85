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

func TestFile_RoundTrip(t *testing.T) {
	input := newTestTree(t)
	producer := &artifact.FileProducer{
		Target:                   artifact.Target{Path: filepath.Join(t.TempDir(), "out")},
		PreserveEmptyDirectories: true,
	}

	require.NoError(t, producer.Validate())

	output, err := producer.ProduceFrom(t.Context(), artifact.NewMemoryArtifact("input", input))
	require.NoError(t, err)

	assert.Equal(t, []string{producer.Path}, output.Paths())
	assert.Equal(t, "out", output.Name())

	content, err := os.ReadFile(filepath.Join(producer.Path, "bin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, helloScript, string(content))

	target, err := os.Readlink(filepath.Join(producer.Path, "usr", "bin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "../../bin/hello", target)

	assert.DirExists(t, filepath.Join(producer.Path, "var", "lib", "hello"))

	require.NoError(t, output.(artifact.Validator).Validate())

	extracted, err := output.Extract(t.Context())
	require.NoError(t, err)

	assertSameTree(t, input, extracted)
}

func TestFileProducer_EmptyDirectories(t *testing.T) {
	producer := &artifact.FileProducer{
		Target: artifact.Target{Path: filepath.Join(t.TempDir(), "out")},
	}

	_, err := producer.ProduceFrom(t.Context(), artifact.NewMemoryArtifact("input", newTestTree(t)))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(producer.Path, "etc", "hello.conf"))
	assert.NoDirExists(t, filepath.Join(producer.Path, "var"))
}

func TestFileProducer_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name: "new directory",
			path: filepath.Join(dir, "new"),
		},
		{
			name: "existing directory",
			path: dir,
		},
		{
			name:     "existing file",
			path:     file,
			expected: "exists and is not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer := &artifact.FileProducer{
				Target: artifact.Target{Path: tt.path},
			}

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

func TestFileArtifact_Extract(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "bin", "hello"), []byte(helloScript), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("readme\n"), 0o644))

	tests := []struct {
		name     string
		root     string
		paths    []string
		expected []string
	}{
		{
			name:     "relative to root",
			root:     filepath.Join(dir, "src"),
			paths:    []string{filepath.Join(dir, "src", "bin")},
			expected: []string{"/bin/hello"},
		},
		{
			name:     "relative to working directory",
			paths:    []string{"src/bin/hello", "README"},
			expected: []string{"/src/bin/hello", "/README"},
		},
		{
			name:     "absolute",
			paths:    []string{filepath.Join(dir, "README")},
			expected: []string{filepath.Join(dir, "README")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(dir)

			a := artifact.NewFileArtifact(tt.root, tt.paths...)
			require.NoError(t, a.Validate())

			fsys, err := a.Extract(t.Context())
			require.NoError(t, err)

			for _, path := range tt.expected {
				typ, err := disk.TypeOf(fsys, path)
				require.NoError(t, err, path)
				assert.Equal(t, disk.TypeRegular, typ, path)
			}
		})
	}
}

func TestFileArtifact_OutsideRoot(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside")
	require.NoError(t, os.WriteFile(outside, nil, 0o600))

	a := artifact.NewFileArtifact(filepath.Join(dir, "root"), outside)

	err := a.Validate()
	require.ErrorIs(t, err, &artifact.ValidationError{})
	assert.ErrorContains(t, err, "path outside of root")

	_, err = a.Extract(t.Context())
	require.ErrorIs(t, err, artifact.ErrPathOutsideRoot)
}
