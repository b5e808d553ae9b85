// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipeline runs an input artifact through a list of producers.
//
// In chain mode each produced artifact is the input of the next producer. In
// fan-out mode every producer consumes the original input. Artifacts are
// immutable values, so passing them on does not copy any content.
package pipeline
