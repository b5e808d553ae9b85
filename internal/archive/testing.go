// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package archive

import (
	"io"

	"github.com/aibor/repack/internal/disk"
)

// MockEntry is a single entry recorded by [MockWriter].
type MockEntry struct {
	Path    string
	Type    disk.FileType
	Target  string
	Content string
	Meta    disk.Metadata
}

// MockWriter is a [Writer] that records all written entries.
type MockWriter struct {
	Entries []MockEntry
	Closed  bool
	Err     error
}

func (m *MockWriter) WriteRegular(path string, source io.Reader, meta disk.Metadata) error {
	content, err := io.ReadAll(source)
	if err != nil {
		return err //nolint:wrapcheck
	}

	m.Entries = append(m.Entries, MockEntry{
		Path:    path,
		Type:    disk.TypeRegular,
		Content: string(content),
		Meta:    meta,
	})

	return m.Err
}

func (m *MockWriter) WriteDirectory(path string, meta disk.Metadata) error {
	m.Entries = append(m.Entries, MockEntry{
		Path: path,
		Type: disk.TypeDirectory,
		Meta: meta,
	})

	return m.Err
}

func (m *MockWriter) WriteLink(path, target string, meta disk.Metadata) error {
	m.Entries = append(m.Entries, MockEntry{
		Path:   path,
		Type:   disk.TypeSymlink,
		Target: target,
		Meta:   meta,
	})

	return m.Err
}

func (m *MockWriter) Close() error {
	m.Closed = true

	return nil
}
