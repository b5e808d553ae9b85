// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package disk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// TypeOf returns the [FileType] of the named file.
//
// The path is read as a symbolic link first, before any metadata is
// trusted.
func TypeOf(d Disk, name string) (FileType, error) {
	_, err := d.ReadLink(name)
	if err == nil {
		return TypeSymlink, nil
	}

	if !errors.Is(err, ErrWrongType) {
		return TypeUnknown, err
	}

	meta, err := d.SymlinkMetadata(name)
	if err != nil {
		return TypeUnknown, err //nolint:wrapcheck
	}

	return meta.Type, nil
}

// Exists returns true if the named file exists. Symbolic links are not
// followed.
func Exists(d Disk, name string) (bool, error) {
	_, err := TypeOf(d, name)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrNotExist) {
		return false, nil
	}

	return false, err
}

// ReadFile reads the whole content of the named file.
func ReadFile(d Disk, name string) ([]byte, error) {
	file, err := d.OpenFile(name, OpenRead)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	defer file.Close()

	var buf bytes.Buffer

	_, err = io.Copy(&buf, file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// WriteFile writes data to the named file, creating or truncating it.
// Missing parent directories are created. Permission bits are set to mode.
func WriteFile(d Disk, name string, data []byte, mode fs.FileMode) error {
	return WriteFileFrom(d, name, bytes.NewReader(data), mode)
}

// WriteFileFrom writes everything from source to the named file, creating or
// truncating it. Missing parent directories are created.
func WriteFileFrom(d Disk, name string, source io.Reader, mode fs.FileMode) error {
	err := d.CreateDirAll(Parent(name))
	if err != nil {
		return err //nolint:wrapcheck
	}

	file, err := d.OpenFile(name, OpenReplace)
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = io.Copy(file, source)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	return d.SetPermissions(name, mode) //nolint:wrapcheck
}

// Parent returns the parent directory of the named file.
func Parent(name string) string {
	return path.Dir(Clean(name))
}
