// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import (
	"iter"
	"path"
	"slices"
	"strings"
)

// Entry is a path visited by [Walk] along with its type.
type Entry struct {
	Path string
	Type FileType
}

// Walk returns a sequence of all entries below and including root.
//
// The walk is depth first and entries of a directory are visited in
// lexicographic order, independent of the order the disk returns them in.
// Symbolic links are reported but never followed. The sequence stops after
// the first error.
func Walk(d Disk, root string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		walk(d, Clean(root), yield)
	}
}

func walk(d Disk, name string, yield func(Entry, error) bool) bool {
	typ, err := TypeOf(d, name)
	if err != nil {
		yield(Entry{Path: name}, err)
		return false
	}

	if !yield(Entry{Path: name, Type: typ}, nil) {
		return false
	}

	if typ != TypeDirectory {
		return true
	}

	names := []string{}

	for entry, err := range d.ReadDir(name) {
		if err != nil {
			yield(Entry{Path: name, Type: typ}, err)
			return false
		}

		names = append(names, entry.Name)
	}

	slices.Sort(names)

	for _, child := range names {
		if !walk(d, path.Join(name, child), yield) {
			return false
		}
	}

	return true
}

// Clean returns the canonical absolute form of the given path.
func Clean(name string) string {
	return path.Clean("/" + name)
}

// Rel returns name relative to the disk root, without leading slash. The root
// itself is returned as ".".
func Rel(name string) string {
	rel := strings.TrimPrefix(Clean(name), "/")
	if rel == "" {
		return "."
	}

	return rel
}
