// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aibor/repack/internal/compress"
	"github.com/aibor/repack/internal/inject"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used if none is given.
const DefaultPath = "repack.yaml"

// TypeDocker is the artifact type of images in a local Docker daemon.
const TypeDocker = "docker"

// File is the content of a configuration file.
type File struct {
	// Chain passes the output of each producer on as input of the next one.
	Chain bool `yaml:"chain"`

	// StrictOverwrite fails copies that would replace existing files in all
	// outputs.
	StrictOverwrite bool `yaml:"strict_overwrite"`

	Metadata   Metadata                 `yaml:"metadata"`
	Input      Input                    `yaml:"input"`
	Output     []Output                 `yaml:"output"`
	Injections map[string]InjectionList `yaml:"injections"`
}

// Metadata is the package metadata shared by all package outputs.
type Metadata struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Arch        string `yaml:"arch"`
	License     string `yaml:"license"`
	URL         string `yaml:"url"`
}

// Input configures the input artifact.
type Input struct {
	Type string `yaml:"type"`

	// Path is the host path of single file artifacts.
	Path string `yaml:"path"`

	// Paths are the host paths of file artifacts.
	Paths []string `yaml:"paths"`

	// Root is the host directory the paths of file artifacts are relative
	// to in the tree.
	Root string `yaml:"root"`
}

// Output configures a single producer. Options not supported by the
// producer's type are ignored.
type Output struct {
	Type       string   `yaml:"type"`
	Name       string   `yaml:"name"`
	Path       string   `yaml:"path"`
	Injections []string `yaml:"injections"`

	// file
	PreserveEmptyDirectories bool `yaml:"preserve_empty_directories"`

	// tarball, cpio, deb
	Compression compress.Type `yaml:"compression"`

	// deb, arch
	Depends []string `yaml:"depends"`

	// deb: host paths of the maintainer scripts.
	Prerm    string `yaml:"prerm"`
	Postinst string `yaml:"postinst"`

	// rpm
	Requires []string `yaml:"requires"`

	// oci
	Image      string   `yaml:"image"`
	BaseImage  string   `yaml:"base_image"`
	Entrypoint []string `yaml:"entrypoint"`
	Cmd        []string `yaml:"cmd"`
	Env        []string `yaml:"env"`

	// ext4
	Label string `yaml:"label"`
}

// Injection configures a single injection.
type Injection struct {
	Type    inject.Kind `yaml:"type"`
	Src     string      `yaml:"src"`
	Dest    string      `yaml:"dest"`
	Path    string      `yaml:"path"`
	Content string      `yaml:"content"`
}

// InjectionList is a list of injections. A single injection not wrapped in
// a list is accepted as well.
type InjectionList []Injection

// UnmarshalYAML implements [yaml.Unmarshaler].
func (l *InjectionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var injection Injection

		err := node.Decode(&injection)
		if err != nil {
			return err //nolint:wrapcheck
		}

		*l = InjectionList{injection}

		return nil
	}

	var injections []Injection

	err := node.Decode(&injections)
	if err != nil {
		return err //nolint:wrapcheck
	}

	*l = injections

	return nil
}

// Load reads the configuration file at the given path.
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes a configuration from the given reader.
func Parse(r io.Reader) (*File, error) {
	var file File

	err := yaml.NewDecoder(r).Decode(&file)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: empty document: %w", err)
	} else if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &file, nil
}
