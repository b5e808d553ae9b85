// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads repack YAML configuration files and turns them into
// [pipeline.Config] values.
//
// A configuration has a single input, a list of outputs and named injection
// lists outputs refer to by ID:
//
//	chain: false
//	metadata:
//	  name: hello
//	  version: 1.0.0-1
//	  description: says hello
//	  author: Jane Doe <jane@example.org>
//	  arch: x86_64
//	  license: MIT
//	input:
//	  type: file
//	  paths: [./bin/hello]
//	output:
//	  - type: deb
//	    path: ./out/hello.deb
//	    injections: [usr]
//	injections:
//	  usr:
//	    - type: move
//	      src: /bin
//	      dest: /usr/bin
//
// The package metadata is shared by all package outputs. The architecture is
// converted into the naming of each package format.
package config
