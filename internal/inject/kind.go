// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inject

import (
	"slices"
)

const (
	KindMove     Kind = "move"
	KindCopy     Kind = "copy"
	KindSymlink  Kind = "symlink"
	KindTouch    Kind = "touch"
	KindDelete   Kind = "delete"
	KindCreate   Kind = "create"
	KindHostFile Kind = "host-file"
	KindHostDir  Kind = "host-dir"
)

// Kind identifies the type of an [Injection].
type Kind string

// ParseKind returns the [Kind] for the given name.
func ParseKind(name string) (Kind, error) {
	var kind Kind

	err := kind.UnmarshalText([]byte(name))
	if err != nil {
		return "", err
	}

	return kind, nil
}

func (k *Kind) isKnown() bool {
	knownKinds := []Kind{
		KindMove,
		KindCopy,
		KindSymlink,
		KindTouch,
		KindDelete,
		KindCreate,
		KindHostFile,
		KindHostDir,
	}

	return slices.Contains(knownKinds, *k)
}

// String implements [fmt.Stringer].
func (k *Kind) String() string {
	if !k.isKnown() {
		return ""
	}

	return string(*k)
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "" {
		return nil, ErrKindInvalid
	}

	return []byte(s), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *Kind) UnmarshalText(text []byte) error {
	kind := Kind(text)

	if !kind.isKnown() {
		return ErrKindInvalid
	}

	*k = kind

	return nil
}
