// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/aibor/repack/internal/artifact"
)

// Step is a single step of a pipeline stage.
type Step string

const (
	// StepValidateInput validates the input artifact.
	StepValidateInput Step = "validate input"
	// StepValidate validates the producer configuration.
	StepValidate Step = "validate"
	// StepCheck checks the producer accepts its input.
	StepCheck Step = "check input"
	// StepProduce produces the output artifact.
	StepProduce Step = "produce"
	// StepValidateOutput validates the produced artifact.
	StepValidateOutput Step = "validate output"
)

// String implements [fmt.Stringer].
func (s Step) String() string {
	return string(s)
}

// Config describes a single [Run].
type Config struct {
	// Chain passes the output of each producer on as input of the next one.
	// If false, all producers consume Input.
	Chain bool

	Input     artifact.Artifact
	Producers []artifact.Producer
}

// Result lists the artifacts of a successful [Run].
type Result struct {
	Artifacts []artifact.Artifact
}

// Paths returns the absolute host paths of all artifacts with symbolic links
// resolved. Paths that do not exist are returned as absolute path only.
func (r *Result) Paths() ([]string, error) {
	var paths []string

	for _, a := range r.Artifacts {
		for _, path := range a.Paths() {
			canonical, err := canonicalPath(path)
			if err != nil {
				return nil, err
			}

			paths = append(paths, canonical)
		}
	}

	return paths, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path %s: %w", path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return abs, nil
	} else if err != nil {
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}

	return resolved, nil
}

// Run runs the input through all producers.
//
// Each producer is validated right before it produces. The first failure
// aborts the run and is returned as [*StageError]. Artifacts produced before
// the failure are kept on the host.
func Run(ctx context.Context, cfg Config) (Result, error) {
	var result Result

	if cfg.Input == nil {
		return result, ErrNoInput
	}

	err := validateArtifact(cfg.Input)
	if err != nil {
		return result, &StageError{
			Index:    InputIndex,
			Producer: cfg.Input.Name(),
			Step:     StepValidateInput,
			Err:      err,
		}
	}

	input := cfg.Input

	for idx, producer := range cfg.Producers {
		output, err := runStage(ctx, idx, producer, input)
		if err != nil {
			return result, err
		}

		result.Artifacts = append(result.Artifacts, output)

		if cfg.Chain {
			input = output
		}
	}

	return result, nil
}

func runStage(
	ctx context.Context,
	idx int,
	producer artifact.Producer,
	input artifact.Artifact,
) (artifact.Artifact, error) {
	err := ctx.Err()
	if err != nil {
		return nil, newStageError(idx, producer, StepProduce, err)
	}

	err = producer.Validate()
	if err != nil {
		return nil, newStageError(idx, producer, StepValidate, err)
	}

	err = producer.CanProduceFrom(input)
	if err != nil {
		return nil, newStageError(idx, producer, StepCheck, err)
	}

	slog.Info("Produce artifact",
		slog.Int("stage", idx),
		slog.String("producer", producer.Name()),
		slog.String("input", input.Name()),
	)

	output, err := producer.ProduceFrom(ctx, input)
	if err != nil {
		return nil, newStageError(idx, producer, StepProduce, err)
	}

	err = validateArtifact(output)
	if err != nil {
		return nil, newStageError(idx, producer, StepValidateOutput, err)
	}

	slog.Debug("Artifact produced",
		slog.String("producer", producer.Name()),
		slog.Any("paths", output.Paths()),
	)

	return output, nil
}

func newStageError(idx int, producer artifact.Producer, step Step, err error) *StageError {
	return &StageError{
		Index:    idx,
		Producer: producer.Name(),
		Step:     step,
		Err:      err,
	}
}

// validateArtifact validates the artifact if it supports validation.
func validateArtifact(a artifact.Artifact) error {
	validator, ok := a.(artifact.Validator)
	if !ok {
		return nil
	}

	return validator.Validate() //nolint:wrapcheck
}
