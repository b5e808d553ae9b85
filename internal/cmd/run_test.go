// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
input:
  type: file
  root: ./build
  paths:
    - ./build/bin
output:
  - type: tarball
    path: out.tar
  - type: file
    path: out
    injections: [motd]
injections:
  motd:
    type: create
    path: /etc/motd
    content: hello
`

func setupWorkDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	t.Chdir(dir)
	t.Setenv(cmd.EnvArgsVar, "")
	t.Setenv(artifact.SourceDateEpochEnv, "1700000000")

	require.NoError(t, os.MkdirAll("build/bin", 0o755))
	require.NoError(t, os.WriteFile("build/bin/hello", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile("repack.yaml", []byte(testConfig), 0o600))

	return dir
}

func TestRun(t *testing.T) {
	dir := setupWorkDir(t)

	var stderr bytes.Buffer

	exitCode := cmd.Run(t.Context(), []string{"--report", "report.txt"}, cmd.IO{
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	})
	require.Equal(t, 0, exitCode, stderr.String())

	report, err := os.ReadFile("report.txt")
	require.NoError(t, err)

	expected := filepath.Join(dir, "out.tar") + "\n" + filepath.Join(dir, "out") + "\n"
	assert.Equal(t, expected, string(report))

	motd, err := os.ReadFile("out/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(motd))

	assert.FileExists(t, "out/bin/hello")
	assert.FileExists(t, "out.tar")
}

func TestRun_LocalArgs(t *testing.T) {
	setupWorkDir(t)

	require.NoError(t, os.Rename("repack.yaml", "other.yaml"))
	require.NoError(t, os.WriteFile(".repack-args", []byte("--config\nother.yaml\n"), 0o600))

	exitCode := cmd.Run(t.Context(), nil, cmd.IO{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	})
	require.Equal(t, 0, exitCode)

	assert.FileExists(t, "out.tar")
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		prepare      func(t *testing.T)
		expectedCode int
		expectedLog  string
	}{
		{
			name:         "help",
			args:         []string{"--help"},
			expectedCode: 0,
			expectedLog:  "Usage of 'repack'",
		},
		{
			name:         "unknown flag",
			args:         []string{"--unknown"},
			expectedCode: 2,
			expectedLog:  "unknown flag: --unknown",
		},
		{
			name:         "positional args",
			args:         []string{"extra"},
			expectedCode: 2,
			expectedLog:  "unexpected arguments",
		},
		{
			name:         "missing config",
			args:         []string{"--config", "missing.yaml"},
			expectedCode: 1,
			expectedLog:  "open config",
		},
		{
			name: "strict overwrite",
			args: []string{"--strict-overwrite"},
			prepare: func(t *testing.T) {
				t.Helper()
				require.NoError(t, os.MkdirAll("out/bin", 0o755))
				require.NoError(t, os.WriteFile("out/bin/hello", nil, 0o600))
			},
			expectedCode: 1,
			expectedLog:  "Pipeline failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupWorkDir(t)

			if tt.prepare != nil {
				tt.prepare(t)
			}

			var stderr bytes.Buffer

			exitCode := cmd.Run(t.Context(), tt.args, cmd.IO{
				Stdout: &bytes.Buffer{},
				Stderr: &stderr,
			})
			assert.Equal(t, tt.expectedCode, exitCode)
			assert.Contains(t, stderr.String(), tt.expectedLog)
		})
	}
}
