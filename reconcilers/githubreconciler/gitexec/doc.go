/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitexec runs the git command line client with explicit argument
// vectors. Every dynamic value (URLs, branch names, paths) is passed as its own
// argument and never interpolated into a shell string.
//
// Success is decided by the exit status alone. Standard output is returned as
// text, standard error is captured and attached to the returned *Error so that
// callers can both report and classify failures:
//
//	out, err := runner.Run(ctx, dir, "status", "--porcelain")
//	var gerr *gitexec.Error
//	if errors.As(err, &gerr) && strings.Contains(gerr.Stderr, "...") {
//	    ...
//	}
package gitexec
