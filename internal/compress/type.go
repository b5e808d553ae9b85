// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package compress

import (
	"errors"
	"slices"
	"strings"
)

const (
	// None is an uncompressed stream.
	None Type = "none"
	// Gzip is RFC 1952 gzip.
	Gzip Type = "gzip"
	// Deflate is raw RFC 1951 deflate. It has no header and is never
	// detected, only used if requested explicitly.
	Deflate Type = "deflate"
	// Zlib is RFC 1950 zlib.
	Zlib Type = "zlib"
	// Xz is the xz container format.
	Xz Type = "xz"
	// Zstd is Zstandard.
	Zstd Type = "zstd"
	// LZ4 is the LZ4 frame format.
	LZ4 Type = "lz4"
	// Bzip2 is bzip2. It can only be decompressed.
	Bzip2 Type = "bzip2"
)

var (
	// ErrTypeInvalid is returned if a compression type is not known.
	ErrTypeInvalid = errors.New("invalid compression type")

	// ErrUnsupported is returned if a known compression type can not be used
	// for the requested direction.
	ErrUnsupported = errors.ErrUnsupported
)

// Type is a compression format.
type Type string

func (t *Type) isKnown() bool {
	knownTypes := []Type{
		None,
		Gzip,
		Deflate,
		Zlib,
		Xz,
		Zstd,
		LZ4,
		Bzip2,
	}

	return slices.Contains(knownTypes, *t)
}

// String implements [fmt.Stringer].
func (t *Type) String() string {
	if !t.isKnown() {
		return ""
	}

	return string(*t)
}

// MarshalText implements [encoding.TextMarshaler].
func (t Type) MarshalText() ([]byte, error) {
	s := t.String()
	if s == "" {
		return nil, ErrTypeInvalid
	}

	return []byte(s), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. The empty string is
// decoded as [None].
func (t *Type) UnmarshalText(text []byte) error {
	tt := Type(text)
	if tt == "" {
		tt = None
	}

	if !tt.isKnown() {
		return ErrTypeInvalid
	}

	*t = tt

	return nil
}

// Extension returns the common file name extension including the leading dot.
// It returns the empty string for [None].
func (t Type) Extension() string {
	switch t {
	case Gzip:
		return ".gz"
	case Deflate:
		return ".deflate"
	case Zlib:
		return ".zz"
	case Xz:
		return ".xz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Bzip2:
		return ".bz2"
	default:
		return ""
	}
}

// TypeForPath returns the compression type matching the extension of the
// given file name. Names without known extension map to [None].
func TypeForPath(name string) Type {
	switch {
	case strings.HasSuffix(name, ".tgz"):
		return Gzip
	case strings.HasSuffix(name, ".tzst"):
		return Zstd
	case strings.HasSuffix(name, ".txz"):
		return Xz
	}

	for _, t := range []Type{Gzip, Deflate, Zlib, Xz, Zstd, LZ4, Bzip2} {
		if strings.HasSuffix(name, t.Extension()) {
			return t
		}
	}

	return None
}
