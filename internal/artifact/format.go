// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"slices"
)

const (
	FormatFile    Format = "file"
	FormatTarball Format = "tarball"
	FormatCPIO    Format = "cpio"
	FormatDeb     Format = "deb"
	FormatArch    Format = "arch"
	FormatRPM     Format = "rpm"
	FormatOCI     Format = "oci"
	FormatExt4    Format = "ext4"
)

// Format is a packaging format.
type Format string

func (f *Format) isKnown() bool {
	knownFormats := []Format{
		FormatFile,
		FormatTarball,
		FormatCPIO,
		FormatDeb,
		FormatArch,
		FormatRPM,
		FormatOCI,
		FormatExt4,
	}

	return slices.Contains(knownFormats, *f)
}

// String implements [fmt.Stringer].
func (f *Format) String() string {
	if !f.isKnown() {
		return ""
	}

	return string(*f)
}

// MarshalText implements [encoding.TextMarshaler].
func (f Format) MarshalText() ([]byte, error) {
	s := f.String()
	if s == "" {
		return nil, ErrFormatInvalid
	}

	return []byte(s), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (f *Format) UnmarshalText(text []byte) error {
	format := Format(text)

	if !format.isKnown() {
		return ErrFormatInvalid
	}

	*f = format

	return nil
}

// ConvertArchitecture translates the given architecture name into the name
// the package format uses for it. Names without translation are returned
// unchanged.
func ConvertArchitecture(format Format, arch string) string {
	var names map[string]string

	switch format {
	case FormatArch:
		names = map[string]string{
			"amd64": "x86_64",
			"arm64": "aarch64",
		}
	case FormatDeb:
		names = map[string]string{
			"x86_64":  "amd64",
			"aarch64": "arm64",
			"any":     "all",
			"noarch":  "all",
		}
	case FormatRPM:
		names = map[string]string{
			"amd64": "x86_64",
			"arm64": "aarch64",
			"any":   "noarch",
			"all":   "noarch",
		}
	case FormatOCI:
		names = map[string]string{
			"x86_64":  "amd64",
			"aarch64": "arm64",
		}
	}

	if converted, exists := names[arch]; exists {
		return converted
	}

	return arch
}
