// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

var (
	// ErrHelp is returned if help or the version was requested.
	ErrHelp = pflag.ErrHelp

	// ErrEmptyFilePath is returned if a file path flag is set to an empty
	// value.
	ErrEmptyFilePath = errors.New("file path must not be empty")

	// ErrReadBuildInfo is returned if the build information is not available.
	ErrReadBuildInfo = errors.New("failed to read build info")

	// ErrUnexpectedArgs is returned if positional arguments are given.
	ErrUnexpectedArgs = errors.New("unexpected arguments")
)

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	err error
	msg string
}

func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

func (e *ParseArgsError) Unwrap() error {
	return e.err
}
