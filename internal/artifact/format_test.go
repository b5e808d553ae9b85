// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/aibor/repack/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertArchitecture(t *testing.T) {
	tests := []struct {
		format   artifact.Format
		arch     string
		expected string
	}{
		{artifact.FormatArch, "amd64", "x86_64"},
		{artifact.FormatArch, "x86_64", "x86_64"},
		{artifact.FormatArch, "arm64", "aarch64"},
		{artifact.FormatArch, "any", "any"},
		{artifact.FormatDeb, "x86_64", "amd64"},
		{artifact.FormatDeb, "aarch64", "arm64"},
		{artifact.FormatDeb, "any", "all"},
		{artifact.FormatDeb, "armhf", "armhf"},
		{artifact.FormatRPM, "amd64", "x86_64"},
		{artifact.FormatRPM, "any", "noarch"},
		{artifact.FormatRPM, "all", "noarch"},
		{artifact.FormatOCI, "x86_64", "amd64"},
		{artifact.FormatTarball, "x86_64", "x86_64"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format)+"/"+tt.arch, func(t *testing.T) {
			assert.Equal(t, tt.expected, artifact.ConvertArchitecture(tt.format, tt.arch))
		})
	}
}

func TestFormat_UnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    artifact.Format
		expectedErr error
	}{
		{
			name:     "deb",
			input:    "deb",
			expected: artifact.FormatDeb,
		},
		{
			name:     "ext4",
			input:    "ext4",
			expected: artifact.FormatExt4,
		},
		{
			name:        "docker",
			input:       "docker",
			expectedErr: artifact.ErrFormatInvalid,
		},
		{
			name:        "empty",
			input:       "",
			expectedErr: artifact.ErrFormatInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actual artifact.Format

			err := actual.UnmarshalText([]byte(tt.input))
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestBuildTime(t *testing.T) {
	t.Run("source date epoch", func(t *testing.T) {
		t.Setenv(artifact.SourceDateEpochEnv, "1700000000")

		actual, err := artifact.BuildTime()
		require.NoError(t, err)

		assert.Equal(t, time.Unix(1700000000, 0).UTC(), actual)
	})

	t.Run("current time", func(t *testing.T) {
		t.Setenv(artifact.SourceDateEpochEnv, "")

		before := time.Now().Add(-time.Second)

		actual, err := artifact.BuildTime()
		require.NoError(t, err)

		assert.WithinRange(t, actual, before, time.Now())
	})

	t.Run("future", func(t *testing.T) {
		future := time.Now().Add(time.Hour).Unix()
		t.Setenv(artifact.SourceDateEpochEnv, strconv.FormatInt(future, 10))

		_, err := artifact.BuildTime()
		require.ErrorIs(t, err, artifact.ErrBuildTimeInFuture)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv(artifact.SourceDateEpochEnv, "yesterday")

		_, err := artifact.BuildTime()
		require.ErrorIs(t, err, strconv.ErrSyntax)
	})
}
