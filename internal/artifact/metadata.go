// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"regexp"
	"slices"
)

var (
	debNamePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)
	debVersionPattern = regexp.MustCompile(`^[0-9]`)

	// pkgNamePattern and pkgVersionPattern apply to arch and rpm packages.
	// The version must end with the release number.
	pkgNamePattern    = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)
	pkgVersionPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+._-]*(-\d+)$`)

	debArchitectures = []string{
		"amd64",
		"arm64",
		"armhf",
		"i386",
		"mips",
		"mipsel",
		"mips64el",
		"ppc64el",
		"s390x",
		"all",
	}

	archArchitectures = []string{
		"x86_64",
		"aarch64",
		"any",
	}
)

// Metadata describes a software package.
type Metadata struct {
	Name        string
	Version     string
	Description string
	Author      string
	// Arch is the architecture in the naming of the package format. Use
	// [ConvertArchitecture] to translate it.
	Arch    string
	License string
	URL     string
}

func (m *Metadata) validateDeb(v *validation) {
	v.check(debNamePattern.MatchString(m.Name),
		"package name %q must match %s", m.Name, debNamePattern)
	v.check(debVersionPattern.MatchString(m.Version),
		"version %q must start with a digit", m.Version)
	v.check(slices.Contains(debArchitectures, m.Arch),
		"architecture %q is not supported", m.Arch)
	v.check(m.Description != "", "description is empty")
	v.check(m.Author != "", "author is empty")
}

func (m *Metadata) validateArch(v *validation) {
	m.validatePkg(v)
	v.check(slices.Contains(archArchitectures, m.Arch),
		"architecture %q is not supported", m.Arch)
	v.check(m.Description != "", "description is empty")
	v.check(m.Author != "", "author is empty")
}

func (m *Metadata) validateRPM(v *validation) {
	m.validatePkg(v)
	v.check(m.Arch != "", "architecture is empty")
	v.check(m.Description != "", "description is empty")
}

func (m *Metadata) validatePkg(v *validation) {
	v.check(pkgNamePattern.MatchString(m.Name),
		"package name %q must match %s", m.Name, pkgNamePattern)
	v.check(pkgVersionPattern.MatchString(m.Version),
		"version %q must match %s", m.Version, pkgVersionPattern)
}
