// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package artifact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormatInvalid is returned if a format name is not known.
	ErrFormatInvalid = errors.New("unknown format")

	// ErrBuildTimeInFuture is returned if SOURCE_DATE_EPOCH lies in the
	// future.
	ErrBuildTimeInFuture = errors.New("build time is in the future")

	// ErrOutputExists is returned if a producer refuses to replace an
	// existing output.
	ErrOutputExists = errors.New("output already exists")

	// ErrNoManifest is returned if an OCI layout does not contain any image.
	ErrNoManifest = errors.New("no image manifest found")

	// ErrMemberNotFound is returned if a package does not contain a required
	// member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrPkgInfoInvalid is returned if a .PKGINFO file can not be parsed.
	ErrPkgInfoInvalid = errors.New("invalid .PKGINFO")

	// ErrPathOutsideRoot is returned if a path of a [FileArtifact] is not
	// located below its root.
	ErrPathOutsideRoot = errors.New("path outside of root")

	// ErrDigestMismatch is returned if a blob does not match its digest.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrMkfsFailed is returned if the filesystem of a block image could not
	// be created.
	ErrMkfsFailed = errors.New("mkfs failed")
)

// ValidationError lists all problems found while validating a producer or
// an artifact.
type ValidationError struct {
	Subject string
	Reasons []string
}

// Error implements the [error] interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Reasons, "; "))
}

// Is implements the [errors.Is] interface.
func (*ValidationError) Is(other error) bool {
	_, ok := other.(*ValidationError)
	return ok
}

// validation collects the reasons a subject is invalid.
type validation struct {
	subject string
	reasons []string
}

func newValidation(subject string) *validation {
	return &validation{subject: subject}
}

// check adds the formatted reason if ok is false.
func (v *validation) check(ok bool, format string, args ...any) {
	if !ok {
		v.reasons = append(v.reasons, fmt.Sprintf(format, args...))
	}
}

// fail adds the error as reason if it is not nil.
func (v *validation) fail(err error) {
	if err != nil {
		v.reasons = append(v.reasons, err.Error())
	}
}

func (v *validation) err() error {
	if len(v.reasons) == 0 {
		return nil
	}

	return &ValidationError{
		Subject: v.subject,
		Reasons: v.reasons,
	}
}
