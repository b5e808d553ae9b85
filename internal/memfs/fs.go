// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memfs

import (
	"errors"
	"io/fs"
	"iter"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aibor/repack/internal/disk"
)

const (
	defaultDirMode  = 0o755
	defaultFileMode = 0o644
	defaultLinkMode = 0o777
)

// PathError records an error and the operation and file path that caused it.
type PathError = fs.PathError

var _ disk.Disk = (*FS)(nil)

// FS is an in-memory file tree.
//
// It is safe for concurrent use. The zero value is not usable, use [New].
type FS struct {
	mu   sync.RWMutex
	root *directory
	now  func() time.Time
}

// New creates a new empty [FS] that only consists of the root directory.
func New() *FS {
	fsys := &FS{
		now: time.Now,
	}
	fsys.root = newDirectory(fsys.newAttributes(defaultDirMode))

	return fsys
}

func (fsys *FS) newAttributes(mode fs.FileMode) attributes {
	return attributes{
		mode:  mode,
		mtime: fsys.now(),
	}
}

// OpenFile opens the named regular file. With [disk.OpenCreate] missing
// parent directories are created along with the file.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) OpenFile(name string, flag disk.OpenFlag) (disk.File, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	file, err := fsys.openFile(name, flag)
	if err != nil {
		return nil, &PathError{
			Op:   "open",
			Path: name,
			Err:  err,
		}
	}

	return &handle{
		fsys: fsys,
		name: name,
		file: file,
		flag: flag,
	}, nil
}

func (fsys *FS) openFile(name string, flag disk.OpenFlag) (*regularFile, error) {
	_, n, err := fsys.lookup(name, true)

	switch {
	case err == nil:
		if flag.Has(disk.OpenCreateNew) {
			return nil, disk.ErrExist
		}
	case errors.Is(err, disk.ErrNotExist) && flag.Creates():
		n = &regularFile{
			attributes: fsys.newAttributes(defaultFileMode),
		}

		err = fsys.insert(name, n)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	file, isRegular := n.(*regularFile)
	if !isRegular {
		if n.fileType() == disk.TypeDirectory {
			return nil, disk.ErrIsDir
		}

		return nil, disk.ErrWrongType
	}

	if flag.Has(disk.OpenWrite | disk.OpenTruncate) {
		file.data = nil
		file.mtime = fsys.now()
	}

	return file, nil
}

// Metadata returns the metadata of the named file. Symbolic links are
// followed.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) Metadata(name string) (disk.Metadata, error) {
	return fsys.metadata("stat", name, true)
}

// SymlinkMetadata returns the metadata of the named file. A symbolic link in
// the last path element is not followed.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) SymlinkMetadata(name string) (disk.Metadata, error) {
	return fsys.metadata("lstat", name, false)
}

func (fsys *FS) metadata(op, name string, follow bool) (disk.Metadata, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	_, n, err := fsys.lookup(name, follow)
	if err != nil {
		return disk.Metadata{}, &PathError{
			Op:   op,
			Path: name,
			Err:  err,
		}
	}

	return metadataOf(n), nil
}

// CreateDirAll creates a directory with the given name along with all
// necessary parents.
//
// It returns a [PathError] in case of errors. If the directory exists already,
// it does nothing and returns nil.
func (fsys *FS) CreateDirAll(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	_, err := fsys.mkdirAll(name)
	if err != nil {
		return &PathError{
			Op:   "mkdir",
			Path: name,
			Err:  err,
		}
	}

	return nil
}

// ReadDir returns the entries of the named directory in lexicographic order.
//
// The entries are collected when the iteration starts.
func (fsys *FS) ReadDir(name string) iter.Seq2[disk.DirEntry, error] {
	return func(yield func(disk.DirEntry, error) bool) {
		entries, err := fsys.readDir(name)
		if err != nil {
			yield(disk.DirEntry{}, &PathError{
				Op:   "readdir",
				Path: name,
				Err:  err,
			})

			return
		}

		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (fsys *FS) readDir(name string) ([]disk.DirEntry, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	_, n, err := fsys.lookup(name, true)
	if err != nil {
		return nil, err
	}

	dir, isDir := n.(*directory)
	if !isDir {
		return nil, disk.ErrNotDir
	}

	names := dir.names()
	entries := make([]disk.DirEntry, 0, len(names))

	for _, childName := range names {
		entries = append(entries, disk.DirEntry{
			Name: childName,
			Type: dir.children[childName].fileType(),
		})
	}

	return entries, nil
}

// Symlink creates name as symbolic link pointing to target. Missing parent
// directories are created.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) Symlink(target, name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	link := &symbolicLink{
		attributes: fsys.newAttributes(defaultLinkMode),
		target:     target,
	}

	err := fsys.insert(name, link)
	if err != nil {
		return &PathError{
			Op:   "symlink",
			Path: name,
			Err:  err,
		}
	}

	return nil
}

// ReadLink returns the target of the symbolic link with the given name.
//
// It returns a [PathError] in case of errors. It returns [disk.ErrNotSymlink]
// in case the file is not a symbolic link.
func (fsys *FS) ReadLink(name string) (string, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	_, n, err := fsys.lookup(name, false)
	if err == nil {
		link, isLink := n.(*symbolicLink)
		if isLink {
			return link.target, nil
		}

		err = disk.ErrNotSymlink
	}

	return "", &PathError{
		Op:   "readlink",
		Path: name,
		Err:  err,
	}
}

// SetPermissions sets the permission bits of the named file. Symbolic links
// are followed.
func (fsys *FS) SetPermissions(name string, mode fs.FileMode) error {
	return fsys.modify("chmod", name, func(attrs *attributes) {
		attrs.mode = mode & modeMask
	})
}

// Chown sets the owner of the named file. Symbolic links are followed.
func (fsys *FS) Chown(name string, uid, gid int) error {
	return fsys.modify("chown", name, func(attrs *attributes) {
		attrs.uid = uid
		attrs.gid = gid
	})
}

// Chtimes sets the modification time of the named file. Symbolic links are
// followed.
func (fsys *FS) Chtimes(name string, mtime time.Time) error {
	return fsys.modify("chtimes", name, func(attrs *attributes) {
		attrs.mtime = mtime
	})
}

func (fsys *FS) modify(op, name string, modFn func(*attributes)) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	_, n, err := fsys.lookup(name, true)
	if err != nil {
		return &PathError{
			Op:   op,
			Path: name,
			Err:  err,
		}
	}

	modFn(n.attrs())

	return nil
}

// Rename moves oldname to newname. The parent of newname must exist. An
// existing newname is replaced if it is of the same kind as oldname. A
// directory can only be replaced if it is empty.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) Rename(oldname, newname string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	err := fsys.rename(oldname, newname)
	if err != nil {
		return &PathError{
			Op:   "rename",
			Path: oldname,
			Err:  err,
		}
	}

	return nil
}

func (fsys *FS) rename(oldname, newname string) error {
	oldParent, oldBase, err := fsys.parent(oldname)
	if err != nil {
		return err
	}

	n, exists := oldParent.children[oldBase]
	if !exists {
		return disk.ErrNotExist
	}

	newParent, newBase, err := fsys.parent(newname)
	if err != nil {
		return err
	}

	if strings.HasPrefix(disk.Clean(newname), disk.Clean(oldname)+"/") {
		return disk.ErrInvalid
	}

	existing, exists := newParent.children[newBase]
	if exists {
		if existing == n {
			return nil
		}

		srcDir, srcIsDir := n.(*directory)
		destDir, destIsDir := existing.(*directory)

		switch {
		case srcIsDir && !destIsDir:
			return disk.ErrNotDir
		case !srcIsDir && destIsDir:
			return disk.ErrIsDir
		case destIsDir && len(destDir.children) > 0 && srcDir != destDir:
			return disk.ErrDirNotEmpty
		}
	}

	delete(oldParent.children, oldBase)
	newParent.children[newBase] = n

	return nil
}

// RemoveFile removes the named file. It must not be a directory.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) RemoveFile(name string) error {
	return fsys.remove("remove", name, func(n node) error {
		if n.fileType() == disk.TypeDirectory {
			return disk.ErrIsDir
		}

		return nil
	})
}

// RemoveDirAll removes the named directory along with all its children.
// Removing the root directory removes all its children.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) RemoveDirAll(name string) error {
	if disk.Clean(name) == "/" {
		fsys.mu.Lock()
		defer fsys.mu.Unlock()

		fsys.root.children = make(map[string]node)

		return nil
	}

	return fsys.remove("removeall", name, func(n node) error {
		if n.fileType() != disk.TypeDirectory {
			return disk.ErrNotDir
		}

		return nil
	})
}

func (fsys *FS) remove(op, name string, checkFn func(node) error) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	err := func() error {
		parent, base, err := fsys.parent(name)
		if err != nil {
			return err
		}

		n, exists := parent.children[base]
		if !exists {
			return disk.ErrNotExist
		}

		err = checkFn(n)
		if err != nil {
			return err
		}

		delete(parent.children, base)

		return nil
	}()
	if err != nil {
		return &PathError{
			Op:   op,
			Path: name,
			Err:  err,
		}
	}

	return nil
}

// Close implements [disk.Disk]. It does nothing.
func (*FS) Close() error {
	return nil
}

// Size returns the sum of the sizes of all regular files in the tree.
func (fsys *FS) Size() int64 {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	return fsys.root.contentSize()
}

// ResolveSymlink returns the path the given name resolves to after following
// all symbolic links. At most [MaxSymlinkDepth] links are followed, a longer
// chain fails with [disk.ErrTooManySymlinks].
//
// It returns a [PathError] in case of errors.
func (fsys *FS) ResolveSymlink(name string) (string, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	resolved, _, err := fsys.lookup(name, true)
	if err != nil {
		return "", &PathError{
			Op:   "resolve",
			Path: name,
			Err:  err,
		}
	}

	return resolved, nil
}

// CopyTree copies the file at src to dest. Directories are copied
// recursively. A symbolic link at src is copied as link. Missing parents of
// dest are created. An existing non-directory dest is replaced, unless src is
// a directory.
//
// It returns a [PathError] in case of errors.
func (fsys *FS) CopyTree(src, dest string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	err := fsys.copyTree(src, dest)
	if err != nil {
		return &PathError{
			Op:   "copy",
			Path: src,
			Err:  err,
		}
	}

	return nil
}

func (fsys *FS) copyTree(src, dest string) error {
	_, n, err := fsys.lookup(src, false)
	if err != nil {
		return err
	}

	clone := n.clone()

	parent, err := fsys.mkdirAll(disk.Parent(dest))
	if err != nil {
		return err
	}

	base := path.Base(disk.Clean(dest))
	if base == "/" {
		return disk.ErrExist
	}

	if existing, exists := parent.children[base]; exists {
		switch {
		case existing.fileType() == disk.TypeDirectory:
			return disk.ErrIsDir
		case clone.fileType() == disk.TypeDirectory:
			return disk.ErrNotDir
		}
	}

	parent.children[base] = clone

	return nil
}
