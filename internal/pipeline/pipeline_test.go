// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/disk"
	"github.com/aibor/repack/internal/memfs"
	"github.com/aibor/repack/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput(tb testing.TB) *artifact.MemoryArtifact {
	tb.Helper()

	fsys := memfs.New()
	require.NoError(tb, disk.WriteFile(fsys, "/bin/hello", []byte("#!/bin/sh\necho hello\n"), 0o755))
	require.NoError(tb, disk.WriteFile(fsys, "/etc/hello.conf", []byte("greeting=hello\n"), 0o644))
	require.NoError(tb, fsys.Symlink("/bin/hello", "/etc/hello"))

	return artifact.NewMemoryArtifact("input", fsys)
}

func tarball(path string) *artifact.TarballProducer {
	return &artifact.TarballProducer{
		Target: artifact.Target{Path: path},
	}
}

func TestRun_FanOut(t *testing.T) {
	t.Setenv(artifact.SourceDateEpochEnv, "1700000000")

	dir := t.TempDir()

	cfg := pipeline.Config{
		Input: newInput(t),
		Producers: []artifact.Producer{
			tarball(filepath.Join(dir, "a.tar")),
			tarball(filepath.Join(dir, "b.tar")),
		},
	}

	result, err := pipeline.Run(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)

	a, err := os.ReadFile(filepath.Join(dir, "a.tar"))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "b.tar"))
	require.NoError(t, err)

	assert.Equal(t, a, b)

	paths, err := result.Paths()
	require.NoError(t, err)

	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	expected := []string{
		filepath.Join(resolvedDir, "a.tar"),
		filepath.Join(resolvedDir, "b.tar"),
	}
	assert.Equal(t, expected, paths)
}

func TestRun_Chain(t *testing.T) {
	dir := t.TempDir()
	input := newInput(t)

	cfg := pipeline.Config{
		Chain: true,
		Input: input,
		Producers: []artifact.Producer{
			tarball(filepath.Join(dir, "hello.tar.gz")),
			&artifact.FileProducer{
				Target: artifact.Target{Path: filepath.Join(dir, "tree")},
			},
		},
	}

	result, err := pipeline.Run(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)

	content, err := os.ReadFile(filepath.Join(dir, "tree", "bin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hello\n", string(content))

	info, err := os.Stat(filepath.Join(dir, "tree", "bin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dir, "tree", "etc", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "/bin/hello", target)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name          string
		input         func(dir string) artifact.Artifact
		producers     func(dir string) []artifact.Producer
		expectedIndex int
		expectedStep  pipeline.Step
		notExpected   string
	}{
		{
			name: "invalid input",
			input: func(dir string) artifact.Artifact {
				return artifact.NewTarballArtifact(filepath.Join(dir, "missing.tar"))
			},
			producers: func(dir string) []artifact.Producer {
				return []artifact.Producer{tarball(filepath.Join(dir, "out.tar"))}
			},
			expectedIndex: pipeline.InputIndex,
			expectedStep:  pipeline.StepValidateInput,
			notExpected:   "out.tar",
		},
		{
			name: "invalid second producer",
			input: func(_ string) artifact.Artifact {
				return newInput(t)
			},
			producers: func(dir string) []artifact.Producer {
				return []artifact.Producer{
					tarball(filepath.Join(dir, "first.tar")),
					&artifact.DebProducer{
						Target:   artifact.Target{Path: filepath.Join(dir, "invalid.deb")},
						Metadata: artifact.Metadata{Name: "INVALID NAME"},
					},
					tarball(filepath.Join(dir, "third.tar")),
				}
			},
			expectedIndex: 1,
			expectedStep:  pipeline.StepValidate,
			notExpected:   "third.tar",
		},
		{
			name: "existing rpm",
			input: func(_ string) artifact.Artifact {
				return newInput(t)
			},
			producers: func(dir string) []artifact.Producer {
				path := filepath.Join(dir, "existing.rpm")
				require.NoError(t, os.WriteFile(path, nil, 0o600))

				return []artifact.Producer{
					&artifact.RPMProducer{
						Target: artifact.Target{Path: path},
						Metadata: artifact.Metadata{
							Name:        "test",
							Version:     "1.0-1",
							Description: "test package",
							Arch:        "noarch",
						},
					},
					tarball(filepath.Join(dir, "after.tar")),
				}
			},
			expectedIndex: 0,
			expectedStep:  pipeline.StepCheck,
			notExpected:   "after.tar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			cfg := pipeline.Config{
				Input:     tt.input(dir),
				Producers: tt.producers(dir),
			}

			_, err := pipeline.Run(t.Context(), cfg)
			require.ErrorIs(t, err, &pipeline.StageError{})

			var stageErr *pipeline.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.expectedIndex, stageErr.Index)
			assert.Equal(t, tt.expectedStep, stageErr.Step)

			assert.NoFileExists(t, filepath.Join(dir, tt.notExpected))
		})
	}
}

func TestRun_NoInput(t *testing.T) {
	_, err := pipeline.Run(t.Context(), pipeline.Config{})
	require.ErrorIs(t, err, pipeline.ErrNoInput)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	cfg := pipeline.Config{
		Input:     newInput(t),
		Producers: []artifact.Producer{tarball(filepath.Join(t.TempDir(), "out.tar"))},
	}

	_, err := pipeline.Run(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, 0, stageErr.Index)
	assert.Equal(t, "out.tar", stageErr.Producer)
	assert.Equal(t, pipeline.StepProduce, stageErr.Step)
}

func TestStageError(t *testing.T) {
	err := &pipeline.StageError{
		Index:    2,
		Producer: "hello.deb",
		Step:     pipeline.StepProduce,
		Err:      assert.AnError,
	}

	assert.EqualError(t, err, "stage 2 (hello.deb): produce: "+assert.AnError.Error())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, assert.AnError, &pipeline.StageError{})
}
