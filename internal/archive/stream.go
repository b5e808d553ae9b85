// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package archive

import (
	"bytes"
	"errors"
	"io/fs"
	"iter"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aibor/repack/internal/disk"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
	defaultLinkMode = 0o777
)

var _ disk.Disk = (*StreamDisk)(nil)

// StreamOption configures a [StreamDisk].
type StreamOption func(*StreamDisk)

// WithPrefix sets the prefix of all archive member names, like "." for
// members named "./usr/bin/tool". If the prefix is empty, the root directory
// is not written as member.
func WithPrefix(prefix string) StreamOption {
	return func(d *StreamDisk) {
		d.prefix = prefix
	}
}

// WithModTimeClamp limits the modification time of all members to the given
// time. The zero time disables clamping.
func WithModTimeClamp(clamp time.Time) StreamOption {
	return func(d *StreamDisk) {
		d.clamp = clamp
	}
}

// WithOwner sets the owner of all members to the given user and group IDs,
// regardless of the ownership requested by the copy.
func WithOwner(uid, gid int) StreamOption {
	return func(d *StreamDisk) {
		d.owner = &[2]int{uid, gid}
	}
}

// StreamDisk is a write-once [disk.Disk] that writes every entry into an
// archive [Writer].
//
// An entry stays pending until the next one is started or the disk is
// closed, so its attributes can still be changed. Once written, entries can
// not be modified anymore and such operations fail with
// [disk.ErrUnsupported]. Reading file content is not supported. Metadata of
// written entries is kept, so existence and type checks work as for any other
// disk.
type StreamDisk struct {
	mu      sync.Mutex
	writer  Writer
	prefix  string
	clamp   time.Time
	owner   *[2]int
	entries map[string]*streamEntry
	pending *streamEntry
	closed  bool
	err     error
}

type streamEntry struct {
	name   string
	meta   disk.Metadata
	target string
	data   bytes.Buffer
}

// NewStreamDisk creates a new [StreamDisk] writing into the given [Writer].
// The root directory exists from the start.
func NewStreamDisk(w Writer, opts ...StreamOption) *StreamDisk {
	streamDisk := &StreamDisk{
		writer:  w,
		entries: make(map[string]*streamEntry),
	}

	for _, opt := range opts {
		opt(streamDisk)
	}

	root := streamDisk.newEntry("/", disk.TypeDirectory, defaultDirMode)
	streamDisk.entries["/"] = root
	streamDisk.pending = root

	return streamDisk
}

func (d *StreamDisk) newEntry(name string, fileType disk.FileType, mode fs.FileMode) *streamEntry {
	return &streamEntry{
		name: name,
		meta: disk.Metadata{
			Type:    fileType,
			Mode:    mode,
			ModTime: d.clampTime(time.Now()),
		},
	}
}

func (d *StreamDisk) clampTime(mtime time.Time) time.Time {
	if !d.clamp.IsZero() && mtime.After(d.clamp) {
		return d.clamp
	}

	return mtime
}

// memberName returns the archive member name for the disk path.
func (d *StreamDisk) memberName(name string) string {
	rel := disk.Rel(name)

	switch {
	case d.prefix == "":
		return rel
	case rel == ".":
		return d.prefix
	default:
		return strings.TrimSuffix(d.prefix, "/") + "/" + rel
	}
}

// flush writes the pending entry into the archive.
func (d *StreamDisk) flush() error {
	if d.err != nil {
		return d.err
	}

	entry := d.pending
	if entry == nil {
		return nil
	}

	d.pending = nil

	if entry.name == "/" && d.prefix == "" {
		return nil
	}

	meta := entry.meta
	if d.owner != nil {
		meta.UID, meta.GID = d.owner[0], d.owner[1]
	}

	member := d.memberName(entry.name)

	switch meta.Type {
	case disk.TypeDirectory:
		d.err = d.writer.WriteDirectory(member, meta)
	case disk.TypeSymlink:
		d.err = d.writer.WriteLink(member, entry.target, meta)
	case disk.TypeRegular:
		meta.Size = int64(entry.data.Len())
		entry.meta.Size = meta.Size
		d.err = d.writer.WriteRegular(member, &entry.data, meta)
		entry.data = bytes.Buffer{}
	default:
		d.err = disk.ErrWrongType
	}

	if d.err != nil {
		d.err = &disk.PathError{Op: "write", Path: entry.name, Err: d.err}
	}

	return d.err
}

// start makes the given entry the pending one after writing the previous.
func (d *StreamDisk) start(entry *streamEntry) error {
	err := d.flush()
	if err != nil {
		return err
	}

	d.entries[entry.name] = entry
	d.pending = entry

	return nil
}

func (d *StreamDisk) checkOpen(op, name string) error {
	if d.closed {
		return &disk.PathError{Op: op, Path: name, Err: fs.ErrClosed}
	}

	return nil
}

// mkdirAll creates the named directory and all missing parents as entries.
func (d *StreamDisk) mkdirAll(name string) error {
	entry, exists := d.entries[name]
	if exists {
		if entry.meta.Type != disk.TypeDirectory {
			return disk.ErrNotDir
		}

		return nil
	}

	err := d.mkdirAll(path.Dir(name))
	if err != nil {
		return err
	}

	return d.start(d.newEntry(name, disk.TypeDirectory, defaultDirMode))
}

// lookup returns the entry for the given name. Symbolic links are resolved
// if follow is true.
func (d *StreamDisk) lookup(name string, follow bool) (*streamEntry, error) {
	name = disk.Clean(name)

	for range disk.MaxSymlinkDepth + 1 {
		entry, exists := d.entries[name]
		if !exists {
			return nil, disk.ErrNotExist
		}

		if !follow || entry.meta.Type != disk.TypeSymlink {
			return entry, nil
		}

		target := entry.target
		if !path.IsAbs(target) {
			target = path.Join(path.Dir(name), target)
		}

		name = disk.Clean(target)
	}

	return nil, disk.ErrTooManySymlinks
}

// OpenFile implements [disk.Disk]. Only new regular files can be opened for
// writing. The pending file can be opened again with truncation.
func (d *StreamDisk) OpenFile(name string, flag disk.OpenFlag) (disk.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = disk.Clean(name)

	if err := d.checkOpen("open", name); err != nil {
		return nil, err
	}

	if flag.Has(disk.OpenRead) || !flag.Has(disk.OpenWrite) {
		return nil, &disk.PathError{Op: "open", Path: name, Err: disk.ErrUnsupported}
	}

	entry, exists := d.entries[name]

	switch {
	case exists && flag.Has(disk.OpenCreateNew):
		return nil, &disk.PathError{Op: "open", Path: name, Err: disk.ErrExist}
	case exists && entry.meta.Type == disk.TypeDirectory:
		return nil, &disk.PathError{Op: "open", Path: name, Err: disk.ErrIsDir}
	case exists && entry == d.pending && flag.Has(disk.OpenTruncate):
		entry.data.Reset()
		return &streamFile{disk: d, entry: entry}, nil
	case exists:
		return nil, &disk.PathError{Op: "open", Path: name, Err: disk.ErrUnsupported}
	case !flag.Creates():
		return nil, &disk.PathError{Op: "open", Path: name, Err: disk.ErrNotExist}
	}

	err := d.mkdirAll(path.Dir(name))
	if err != nil {
		return nil, &disk.PathError{Op: "open", Path: name, Err: err}
	}

	entry = d.newEntry(name, disk.TypeRegular, defaultFileMode)

	err = d.start(entry)
	if err != nil {
		return nil, err
	}

	return &streamFile{disk: d, entry: entry}, nil
}

// Metadata implements [disk.Disk].
func (d *StreamDisk) Metadata(name string) (disk.Metadata, error) {
	return d.metadata("stat", name, true)
}

// SymlinkMetadata implements [disk.Disk].
func (d *StreamDisk) SymlinkMetadata(name string) (disk.Metadata, error) {
	return d.metadata("lstat", name, false)
}

func (d *StreamDisk) metadata(op, name string, follow bool) (disk.Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.lookup(name, follow)
	if err != nil {
		return disk.Metadata{}, &disk.PathError{Op: op, Path: name, Err: err}
	}

	meta := entry.meta
	if entry == d.pending && meta.Type == disk.TypeRegular {
		meta.Size = int64(entry.data.Len())
	}

	return meta, nil
}

// CreateDirAll implements [disk.Disk].
func (d *StreamDisk) CreateDirAll(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = disk.Clean(name)

	if err := d.checkOpen("mkdir", name); err != nil {
		return err
	}

	err := d.mkdirAll(name)
	if err != nil {
		return &disk.PathError{Op: "mkdir", Path: name, Err: err}
	}

	return nil
}

// ReadDir implements [disk.Disk]. It lists the entries created so far.
func (d *StreamDisk) ReadDir(name string) iter.Seq2[disk.DirEntry, error] {
	return func(yield func(disk.DirEntry, error) bool) {
		entries, err := d.readDir(name)
		if err != nil {
			yield(disk.DirEntry{}, err)
			return
		}

		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (d *StreamDisk) readDir(name string) ([]disk.DirEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir, err := d.lookup(name, true)
	if err != nil {
		return nil, &disk.PathError{Op: "readdir", Path: name, Err: err}
	}

	if dir.meta.Type != disk.TypeDirectory {
		return nil, &disk.PathError{Op: "readdir", Path: name, Err: disk.ErrNotDir}
	}

	prefix := dir.name
	if prefix != "/" {
		prefix += "/"
	}

	entries := []disk.DirEntry{}

	for entryName, entry := range d.entries {
		rest, found := strings.CutPrefix(entryName, prefix)
		if !found || rest == "" || strings.Contains(rest, "/") {
			continue
		}

		entries = append(entries, disk.DirEntry{Name: rest, Type: entry.meta.Type})
	}

	slices.SortFunc(entries, func(a, b disk.DirEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}

// Symlink implements [disk.Disk].
func (d *StreamDisk) Symlink(target, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = disk.Clean(name)

	if err := d.checkOpen("symlink", name); err != nil {
		return err
	}

	if _, exists := d.entries[name]; exists {
		return &disk.PathError{Op: "symlink", Path: name, Err: disk.ErrExist}
	}

	err := d.mkdirAll(path.Dir(name))
	if err != nil {
		return &disk.PathError{Op: "symlink", Path: name, Err: err}
	}

	entry := d.newEntry(name, disk.TypeSymlink, defaultLinkMode)
	entry.target = target
	entry.meta.Size = int64(len(target))

	return d.start(entry)
}

// ReadLink implements [disk.Disk].
func (d *StreamDisk) ReadLink(name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.lookup(name, false)
	if err != nil {
		return "", &disk.PathError{Op: "readlink", Path: name, Err: err}
	}

	if entry.meta.Type != disk.TypeSymlink {
		return "", &disk.PathError{Op: "readlink", Path: name, Err: disk.ErrNotSymlink}
	}

	return entry.target, nil
}

// SetPermissions implements [disk.Disk].
func (d *StreamDisk) SetPermissions(name string, mode fs.FileMode) error {
	return d.modify("chmod", name, func(meta *disk.Metadata) {
		meta.Mode = mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	})
}

// Chown implements [disk.Disk].
func (d *StreamDisk) Chown(name string, uid, gid int) error {
	return d.modify("chown", name, func(meta *disk.Metadata) {
		meta.UID, meta.GID = uid, gid
	})
}

// Chtimes implements [disk.Disk]. The time is clamped if configured.
func (d *StreamDisk) Chtimes(name string, mtime time.Time) error {
	return d.modify("chtimes", name, func(meta *disk.Metadata) {
		meta.ModTime = d.clampTime(mtime)
	})
}

// modify changes the attributes of the pending entry. Written entries can
// not be changed anymore.
func (d *StreamDisk) modify(op, name string, modFn func(*disk.Metadata)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.lookup(name, false)
	if err != nil {
		return &disk.PathError{Op: op, Path: name, Err: err}
	}

	if entry != d.pending {
		return &disk.PathError{Op: op, Path: name, Err: disk.ErrUnsupported}
	}

	modFn(&entry.meta)

	return nil
}

// Rename implements [disk.Disk]. It is not supported.
func (*StreamDisk) Rename(oldname, _ string) error {
	return &disk.PathError{Op: "rename", Path: oldname, Err: disk.ErrUnsupported}
}

// RemoveFile implements [disk.Disk]. It is not supported.
func (*StreamDisk) RemoveFile(name string) error {
	return &disk.PathError{Op: "remove", Path: name, Err: disk.ErrUnsupported}
}

// RemoveDirAll implements [disk.Disk]. It is not supported.
func (*StreamDisk) RemoveDirAll(name string) error {
	return &disk.PathError{Op: "removeall", Path: name, Err: disk.ErrUnsupported}
}

// Close writes the pending entry and closes the archive [Writer]. It does not
// close the writer's underlying stream.
func (d *StreamDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	flushErr := d.flush()
	closeErr := d.writer.Close()

	return errors.Join(flushErr, closeErr)
}

var _ disk.File = (*streamFile)(nil)

// streamFile collects the content of the pending regular file.
type streamFile struct {
	disk   *StreamDisk
	entry  *streamEntry
	closed bool
}

func (f *streamFile) Read([]byte) (int, error) {
	return 0, &disk.PathError{Op: "read", Path: f.entry.name, Err: disk.ErrUnsupported}
}

func (f *streamFile) Write(b []byte) (int, error) {
	f.disk.mu.Lock()
	defer f.disk.mu.Unlock()

	if f.closed {
		return 0, &disk.PathError{Op: "write", Path: f.entry.name, Err: fs.ErrClosed}
	}

	if f.entry != f.disk.pending {
		return 0, &disk.PathError{Op: "write", Path: f.entry.name, Err: disk.ErrUnsupported}
	}

	return f.entry.data.Write(b) //nolint:wrapcheck
}

func (f *streamFile) Stat() (disk.Metadata, error) {
	meta := f.entry.meta
	meta.Size = int64(f.entry.data.Len())

	return meta, nil
}

func (f *streamFile) Close() error {
	if f.closed {
		return &disk.PathError{Op: "close", Path: f.entry.name, Err: fs.ErrClosed}
	}

	f.closed = true

	return nil
}
