// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inject

import (
	"errors"
	"fmt"

	"github.com/aibor/repack/internal/disk"
)

var (
	// ErrKindInvalid is returned if an injection type is not known.
	ErrKindInvalid = errors.New("unknown injection type")

	// ErrMoveDirOntoFile is returned if a [Move] would replace a regular
	// file with a directory.
	ErrMoveDirOntoFile = fmt.Errorf("%w: cannot move directory onto file", disk.ErrWrongType)
)

// Error wraps any error occurring while applying an injection.
type Error struct {
	// Index is the position of the failed injection in the applied list.
	Index int
	Kind  Kind
	Err   error
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	return fmt.Sprintf("injection %d (%s): %v", e.Index, e.Kind.String(), e.Err)
}

// Is implements the [errors.Is] interface.
func (*Error) Is(other error) bool {
	_, ok := other.(*Error)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *Error) Unwrap() error {
	return e.Err
}
