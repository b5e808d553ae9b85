// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoInput is returned if the pipeline has no input artifact.
var ErrNoInput = errors.New("no input artifact")

// InputIndex is the [StageError.Index] of failures of the input artifact.
const InputIndex = -1

// StageError wraps any error occurring in a single pipeline stage.
type StageError struct {
	Index    int
	Producer string
	Step     Step
	Err      error
}

// Error implements the [error] interface.
func (e *StageError) Error() string {
	if e.Index == InputIndex {
		return fmt.Sprintf("input %s: %s: %v", e.Producer, e.Step, e.Err)
	}

	return fmt.Sprintf("stage %d (%s): %s: %v", e.Index, e.Producer, e.Step, e.Err)
}

// Is implements the [errors.Is] interface.
func (*StageError) Is(other error) bool {
	_, ok := other.(*StageError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *StageError) Unwrap() error {
	return e.Err
}
