// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	"github.com/aibor/repack/internal/artifact"
	"github.com/aibor/repack/internal/inject"
	"github.com/aibor/repack/internal/pipeline"
)

// Pipeline returns the [pipeline.Config] described by the file.
func (f *File) Pipeline() (pipeline.Config, error) {
	var cfg pipeline.Config

	if len(f.Output) == 0 {
		return cfg, ErrNoOutput
	}

	input, err := f.Input.artifact()
	if err != nil {
		return cfg, fmt.Errorf("input: %w", err)
	}

	producers := make([]artifact.Producer, 0, len(f.Output))

	for idx, output := range f.Output {
		producer, err := f.producer(output)
		if err != nil {
			return cfg, fmt.Errorf("output %d: %w", idx, err)
		}

		producers = append(producers, producer)
	}

	cfg.Chain = f.Chain
	cfg.Input = input
	cfg.Producers = producers

	return cfg, nil
}

func parseFormat(typ string) (artifact.Format, error) {
	if typ == TypeDocker {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}

	var format artifact.Format

	err := format.UnmarshalText([]byte(typ))
	if err != nil {
		return "", fmt.Errorf("type %q: %w", typ, err)
	}

	return format, nil
}

func (i *Input) artifact() (artifact.Artifact, error) {
	format, err := parseFormat(i.Type)
	if err != nil {
		return nil, err
	}

	switch format {
	case artifact.FormatFile:
		paths := i.Paths
		if i.Path != "" {
			paths = append(paths, i.Path)
		}

		return artifact.NewFileArtifact(i.Root, paths...), nil
	case artifact.FormatTarball:
		return artifact.NewTarballArtifact(i.Path), nil
	case artifact.FormatCPIO:
		return artifact.NewCPIOArtifact(i.Path), nil
	case artifact.FormatDeb:
		return artifact.NewDebArtifact(i.Path), nil
	case artifact.FormatArch:
		return artifact.NewArchArtifact(i.Path), nil
	case artifact.FormatRPM:
		return artifact.NewRPMArtifact(i.Path), nil
	case artifact.FormatOCI:
		return artifact.NewOCIArtifact(i.Path), nil
	case artifact.FormatExt4:
		return artifact.NewExt4Artifact(i.Path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}
}

func (f *File) injections(ids []string) ([]inject.Injection, error) {
	var injections []inject.Injection

	for _, id := range ids {
		list, exists := f.Injections[id]
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrInjectionNotFound, id)
		}

		for idx, injection := range list {
			_, err := inject.ParseKind(string(injection.Type))
			if err != nil {
				return nil, fmt.Errorf("injection %s[%d]: %w", id, idx, err)
			}

			injections = append(injections, injection.injection())
		}
	}

	return injections, nil
}

func (i *Injection) injection() inject.Injection {
	switch i.Type {
	case inject.KindMove:
		return inject.Move{Src: i.Src, Dest: i.Dest}
	case inject.KindCopy:
		return inject.Copy{Src: i.Src, Dest: i.Dest}
	case inject.KindSymlink:
		return inject.Symlink{Src: i.Src, Dest: i.Dest}
	case inject.KindTouch:
		return inject.Touch{Path: i.Path}
	case inject.KindDelete:
		return inject.Delete{Path: i.Path}
	case inject.KindCreate:
		return inject.Create{Path: i.Path, Content: []byte(i.Content)}
	case inject.KindHostFile:
		return inject.HostFile{Src: i.Src, Dest: i.Dest}
	default:
		return inject.HostDir{Src: i.Src, Dest: i.Dest}
	}
}

// metadata returns the package metadata with the architecture converted for
// the given format.
func (f *File) metadata(format artifact.Format) artifact.Metadata {
	return artifact.Metadata{
		Name:        f.Metadata.Name,
		Version:     f.Metadata.Version,
		Description: f.Metadata.Description,
		Author:      f.Metadata.Author,
		Arch:        artifact.ConvertArchitecture(format, f.Metadata.Arch),
		License:     f.Metadata.License,
		URL:         f.Metadata.URL,
	}
}

func (f *File) producer(output Output) (artifact.Producer, error) {
	format, err := parseFormat(output.Type)
	if err != nil {
		return nil, err
	}

	injections, err := f.injections(output.Injections)
	if err != nil {
		return nil, err
	}

	target := artifact.Target{
		ID:              output.Name,
		Path:            output.Path,
		Inject:          injections,
		StrictOverwrite: f.StrictOverwrite,
	}

	switch format {
	case artifact.FormatFile:
		return &artifact.FileProducer{
			Target:                   target,
			PreserveEmptyDirectories: output.PreserveEmptyDirectories,
		}, nil
	case artifact.FormatTarball:
		return &artifact.TarballProducer{
			Target:      target,
			Compression: output.Compression,
		}, nil
	case artifact.FormatCPIO:
		return &artifact.CPIOProducer{
			TarballProducer: artifact.TarballProducer{
				Target:      target,
				Compression: output.Compression,
			},
		}, nil
	case artifact.FormatDeb:
		return f.debProducer(target, output)
	case artifact.FormatArch:
		return &artifact.ArchProducer{
			Target:   target,
			Metadata: f.metadata(format),
			Depends:  output.Depends,
		}, nil
	case artifact.FormatRPM:
		return &artifact.RPMProducer{
			Target:   target,
			Metadata: f.metadata(format),
			Requires: output.Requires,
		}, nil
	case artifact.FormatOCI:
		return &artifact.OCIProducer{
			Target:     target,
			Image:      output.Image,
			BaseImage:  output.BaseImage,
			Arch:       artifact.ConvertArchitecture(format, f.Metadata.Arch),
			Entrypoint: output.Entrypoint,
			Cmd:        output.Cmd,
			Env:        output.Env,
		}, nil
	case artifact.FormatExt4:
		return &artifact.Ext4Producer{
			Target: target,
			Label:  output.Label,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}
}

func (f *File) debProducer(target artifact.Target, output Output) (artifact.Producer, error) {
	prerm, err := readScript(output.Prerm)
	if err != nil {
		return nil, fmt.Errorf("prerm: %w", err)
	}

	postinst, err := readScript(output.Postinst)
	if err != nil {
		return nil, fmt.Errorf("postinst: %w", err)
	}

	return &artifact.DebProducer{
		Target:      target,
		Metadata:    f.metadata(artifact.FormatDeb),
		Depends:     output.Depends,
		Prerm:       prerm,
		Postinst:    postinst,
		Compression: output.Compression,
	}, nil
}

// readScript returns the content of the host file at path. An empty path
// results in an empty script.
func readScript(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return string(content), nil
}
