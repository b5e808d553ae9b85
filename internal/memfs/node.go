// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs

import (
	"io/fs"
	"maps"
	"slices"
	"time"

	"github.com/aibor/repack/internal/disk"
)

const modeMask = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

type attributes struct {
	mode  fs.FileMode
	uid   int
	gid   int
	mtime time.Time
}

type node interface {
	attrs() *attributes
	fileType() disk.FileType
	size() int64
	clone() node
}

func metadataOf(n node) disk.Metadata {
	attrs := n.attrs()

	return disk.Metadata{
		Type:    n.fileType(),
		Mode:    attrs.mode,
		UID:     attrs.uid,
		GID:     attrs.gid,
		ModTime: attrs.mtime,
		Size:    n.size(),
	}
}

var _ node = (*directory)(nil)

type directory struct {
	attributes

	children map[string]node
}

func newDirectory(attrs attributes) *directory {
	return &directory{
		attributes: attrs,
		children:   make(map[string]node),
	}
}

func (d *directory) attrs() *attributes    { return &d.attributes }
func (*directory) fileType() disk.FileType { return disk.TypeDirectory }
func (*directory) size() int64             { return 0 }

func (d *directory) clone() node {
	dir := newDirectory(d.attributes)

	for name, child := range d.children {
		dir.children[name] = child.clone()
	}

	return dir
}

func (d *directory) names() []string {
	return slices.Sorted(maps.Keys(d.children))
}

// contentSize returns the sum of the sizes of all regular files below d.
func (d *directory) contentSize() int64 {
	var total int64

	for _, child := range d.children {
		switch child := child.(type) {
		case *directory:
			total += child.contentSize()
		case *regularFile:
			total += child.size()
		}
	}

	return total
}

var _ node = (*regularFile)(nil)

type regularFile struct {
	attributes

	data []byte
}

func (f *regularFile) attrs() *attributes    { return &f.attributes }
func (*regularFile) fileType() disk.FileType { return disk.TypeRegular }
func (f *regularFile) size() int64           { return int64(len(f.data)) }

func (f *regularFile) clone() node {
	return &regularFile{
		attributes: f.attributes,
		data:       slices.Clone(f.data),
	}
}

var _ node = (*symbolicLink)(nil)

type symbolicLink struct {
	attributes

	target string
}

func (l *symbolicLink) attrs() *attributes    { return &l.attributes }
func (*symbolicLink) fileType() disk.FileType { return disk.TypeSymlink }
func (l *symbolicLink) size() int64           { return int64(len(l.target)) }

func (l *symbolicLink) clone() node {
	clone := *l
	return &clone
}
