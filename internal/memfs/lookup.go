// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs

import (
	"errors"
	"path"
	"strings"

	"github.com/aibor/repack/internal/disk"
)

// MaxSymlinkDepth is the number of symbolic links that are followed at most
// while resolving a single path.
const MaxSymlinkDepth = disk.MaxSymlinkDepth

// lookup returns the node for the given name along with its resolved path.
// Symbolic links in intermediate path elements are always followed, the last
// element only if follow is true.
func (fsys *FS) lookup(name string, follow bool) (string, node, error) {
	depth := MaxSymlinkDepth
	return fsys.resolve(disk.Clean(name), follow, &depth)
}

func (fsys *FS) resolve(name string, follow bool, depth *int) (string, node, error) {
	current := "/"

	var n node = fsys.root

	if name == "/" {
		return current, n, nil
	}

	components := strings.Split(name[1:], "/")

	for idx, component := range components {
		dir, isDir := n.(*directory)
		if !isDir {
			return "", nil, disk.ErrNotDir
		}

		child, exists := dir.children[component]
		if !exists {
			return "", nil, disk.ErrNotExist
		}

		childPath := path.Join(current, component)

		link, isLink := child.(*symbolicLink)
		if isLink && (follow || idx < len(components)-1) {
			var err error

			childPath, child, err = fsys.follow(current, link, depth)
			if err != nil {
				return "", nil, err
			}
		}

		current, n = childPath, child
	}

	return current, n, nil
}

func (fsys *FS) follow(dir string, link *symbolicLink, depth *int) (string, node, error) {
	if *depth == 0 {
		return "", nil, disk.ErrTooManySymlinks
	}

	*depth--

	return fsys.resolve(linkTarget(dir, link.target), true, depth)
}

// linkTarget returns the absolute path a link in dir with the given target
// points to.
func linkTarget(dir, target string) string {
	if path.IsAbs(target) {
		return path.Clean(target)
	}

	return path.Join(dir, target)
}

// parent returns the directory the named file is located in along with the
// base name of the file.
func (fsys *FS) parent(name string) (*directory, string, error) {
	name = disk.Clean(name)
	if name == "/" {
		return nil, "", disk.ErrInvalid
	}

	dirName, base := path.Split(name)

	_, n, err := fsys.lookup(dirName, true)
	if err != nil {
		return nil, "", err
	}

	dir, isDir := n.(*directory)
	if !isDir {
		return nil, "", disk.ErrNotDir
	}

	return dir, base, nil
}

// mkdirAll returns the named directory, creating it along with all missing
// parents.
func (fsys *FS) mkdirAll(name string) (*directory, error) {
	name = disk.Clean(name)

	_, n, err := fsys.lookup(name, true)
	if err == nil {
		dir, isDir := n.(*directory)
		if !isDir {
			return nil, disk.ErrNotDir
		}

		return dir, nil
	}

	if !errors.Is(err, disk.ErrNotExist) {
		return nil, err
	}

	parent, err := fsys.mkdirAll(path.Dir(name))
	if err != nil {
		return nil, err
	}

	base := path.Base(name)

	// Dangling symbolic link.
	if _, exists := parent.children[base]; exists {
		return nil, disk.ErrExist
	}

	dir := newDirectory(fsys.newAttributes(defaultDirMode))
	parent.children[base] = dir

	return dir, nil
}

// insert adds the node at the given name, creating missing parents. It fails
// if the name exists already.
func (fsys *FS) insert(name string, n node) error {
	parent, err := fsys.mkdirAll(disk.Parent(name))
	if err != nil {
		return err
	}

	base := path.Base(disk.Clean(name))
	if base == "/" {
		return disk.ErrExist
	}

	if _, exists := parent.children[base]; exists {
		return disk.ErrExist
	}

	parent.children[base] = n

	return nil
}
