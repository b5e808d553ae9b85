// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
)

var (
	// ErrUnsupportedType is returned for artifact types that are recognized
	// but not supported, like "docker".
	ErrUnsupportedType = errors.New("unsupported artifact type")

	// ErrInjectionNotFound is returned if an output refers to an injection ID
	// that is not defined.
	ErrInjectionNotFound = errors.New("injection not defined")

	// ErrNoOutput is returned if no output is configured.
	ErrNoOutput = errors.New("no output configured")
)
