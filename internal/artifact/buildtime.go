// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aibor/repack/internal/archive"
)

// SourceDateEpochEnv is the environment variable that fixes the build time
// for reproducible output.
const SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

// sourceDateEpoch returns the time set by [SourceDateEpochEnv]. The second
// return value is false if the variable is not set.
func sourceDateEpoch() (time.Time, bool, error) {
	value, exists := os.LookupEnv(SourceDateEpochEnv)
	if !exists || value == "" {
		return time.Time{}, false, nil
	}

	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", SourceDateEpochEnv, err)
	}

	epoch := time.Unix(seconds, 0).UTC()
	if epoch.After(time.Now()) {
		return time.Time{}, false, fmt.Errorf("%s %d: %w", SourceDateEpochEnv, seconds, ErrBuildTimeInFuture)
	}

	return epoch, true, nil
}

// BuildTime returns the time recorded as build time in package metadata. It
// is taken from SOURCE_DATE_EPOCH if set. Otherwise, the current time is
// used.
func BuildTime() (time.Time, error) {
	epoch, exists, err := sourceDateEpoch()
	if err != nil {
		return time.Time{}, err
	}

	if exists {
		return epoch, nil
	}

	return time.Now().UTC().Truncate(time.Second), nil
}

// streamOptions returns the options for archive streams. Modification times
// are clamped to SOURCE_DATE_EPOCH if set.
func streamOptions(opts ...archive.StreamOption) ([]archive.StreamOption, error) {
	epoch, exists, err := sourceDateEpoch()
	if err != nil {
		return nil, err
	}

	if exists {
		opts = append(opts, archive.WithModTimeClamp(epoch))
	}

	return opts, nil
}
