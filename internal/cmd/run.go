// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/config"
	"github.com/aibor/repack/internal/inject"
	"github.com/aibor/repack/internal/pipeline"
)

const localArgsFile = ".repack-args"

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func parseArgs(args []string, cfg IO) (*flags, error) {
	args, err := MergedArgs(args, os.DirFS("."), localArgsFile)
	if err != nil {
		return nil, err
	}

	flags := newFlags(cfg.Stderr)

	err = flags.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	return flags, nil
}

func run(ctx context.Context, flags *flags) error {
	file, err := config.Load(string(flags.configPath))
	if err != nil {
		return err //nolint:wrapcheck
	}

	if flags.strictOverwrite {
		file.StrictOverwrite = true
	}

	pipelineConfig, err := file.Pipeline()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.Debug("Run pipeline",
		slog.String("config", string(flags.configPath)),
		slog.String("input", pipelineConfig.Input.Name()),
		slog.Int("outputs", len(pipelineConfig.Producers)),
		slog.Bool("chain", pipelineConfig.Chain),
	)

	result, err := pipeline.Run(ctx, pipelineConfig)
	if err != nil {
		return err //nolint:wrapcheck
	}

	paths, err := result.Paths()
	if err != nil {
		return fmt.Errorf("artifact paths: %w", err)
	}

	for _, path := range paths {
		slog.Info("Artifact written", slog.String("path", path))
	}

	if flags.reportPath != "" {
		err := writeReport(string(flags.reportPath), paths)
		if err != nil {
			return err
		}
	}

	return nil
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help is requested. So exit without error
	// in this case.
	if errors.Is(err, ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without an error.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return 2
}

func handleRunError(err error) int {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		slog.Error("Pipeline failed",
			slog.Int("stage", stageErr.Index),
			slog.String("producer", stageErr.Producer),
			slog.String("step", stageErr.Step.String()),
		)
	}

	var validationErr *artifact.ValidationError
	if errors.As(err, &validationErr) {
		for _, reason := range validationErr.Reasons {
			slog.Warn("Validation failed",
				slog.String("subject", validationErr.Subject),
				slog.String("reason", reason),
			)
		}
	}

	var injectErr *inject.Error
	if errors.As(err, &injectErr) {
		slog.Warn("Injection failed",
			slog.Int("index", injectErr.Index),
			slog.String("type", string(injectErr.Kind)),
		)
	}

	slog.Error(err.Error())

	return 1
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	setupLogging(cfg.Stderr, slog.LevelWarn)

	flags, err := parseArgs(args, cfg)
	if err != nil {
		return handleParseArgsError(err)
	}

	setupLogging(cfg.Stderr, flags.logLevel())

	err = run(ctx, flags)
	if err != nil {
		return handleRunError(err)
	}

	return 0
}
