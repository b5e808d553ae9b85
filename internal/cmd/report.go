// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"fmt"
	"os"
)

// writeReport writes the given artifact paths into the file at path, one
// path per line.
func writeReport(path string, paths []string) error {
	var buf bytes.Buffer

	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}

	err := os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
