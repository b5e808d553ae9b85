// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/aibor/repack/internal/config"
	"github.com/spf13/pflag"
)

const (
	name = "repack"

	usageMessage = `Usage of 'repack':
    repack [flags...]

Converts the input artifact of the configuration file into all configured
outputs. Without --config, ./repack.yaml is used.

All repack flags can also be provided via environment variable REPACK_ARGS:
	REPACK_ARGS="--debug" repack

All repack flags can also be provided via file ./.repack-args, with one
argument per line.
`
)

type flags struct {
	flagSet *pflag.FlagSet

	configPath      FilePath
	reportPath      FilePath
	debug           bool
	strictOverwrite bool
	version         bool
}

func newFlags(output io.Writer) *flags {
	flags := &flags{
		configPath: FilePath(config.DefaultPath),
	}

	flags.initFlagset(output)

	return flags
}

func (f *flags) initFlagset(output io.Writer) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = f.usage

	flagSet.VarP(
		&f.configPath,
		"config",
		"c",
		"configuration file",
	)

	flagSet.VarP(
		&f.reportPath,
		"report",
		"r",
		"write the paths of all produced artifacts into this file, one per line",
	)

	flagSet.BoolVar(
		&f.debug,
		"debug",
		f.debug,
		"enable debug output",
	)

	flagSet.BoolVar(
		&f.strictOverwrite,
		"strict-overwrite",
		f.strictOverwrite,
		"fail instead of overwriting files that already exist in the tree",
	)

	flagSet.BoolVar(
		&f.version,
		"version",
		f.version,
		"show version and exit",
	)

	f.flagSet = flagSet
}

// ParseArgs parses the given arguments. It returns [ErrHelp] wrapped in a
// [ParseArgsError] if help or the version was requested.
func (f *flags) ParseArgs(args []string) error {
	err := f.flagSet.Parse(args)
	if errors.Is(err, ErrHelp) {
		// Usage has been printed already.
		return &ParseArgsError{msg: "flag parse", err: err}
	} else if err != nil {
		return f.fail("flag parse", err)
	}

	if f.flagSet.NArg() > 0 {
		return f.fail("invalid arguments", fmt.Errorf("%w: %v", ErrUnexpectedArgs, f.flagSet.Args()))
	}

	// With version flag, just print the version and exit. Using [ErrHelp]
	// the main binary is supposed to return with a non error exit code.
	if f.version {
		err := f.printVersionInformation()
		return &ParseArgsError{msg: "version requested", err: err}
	}

	return nil
}

func (f *flags) logLevel() slog.Level {
	if f.debug {
		return slog.LevelDebug
	}

	return slog.LevelWarn
}

// fail fails like pflag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *flags) printVersionInformation() error {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo
	}

	fmt.Fprintf(f.flagSet.Output(), "Version: %s\n", buildInfo.Main.Version)

	return ErrHelp
}

func (f *flags) usage() {
	fmt.Fprint(f.flagSet.Output(), usageMessage)
	fmt.Fprintln(f.flagSet.Output(), "\nFlags:")
	f.flagSet.PrintDefaults()
}
