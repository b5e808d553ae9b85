// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package artifact provides the packaging formats repack converts between.
//
// Each format has an [Artifact] that extracts its content into a
// [memfs.FS] and a [Producer] that writes the content of a previous artifact
// into a new one of its format. All conversions pass through the in-memory
// tree, so any artifact can be the input of any producer.
//
// Producers have a simple life cycle. They are configured, validated with
// [Producer.Validate] and then produce exactly one artifact. Validation
// errors are collected and reported together as [*ValidationError].
package artifact
