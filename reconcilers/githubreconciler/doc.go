/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubreconciler holds the GitHub facing pieces shared by the
// fleet-wide reconcilers: the Repository value, an authenticated client
// constructor, a fully paginating repository search, and a lookup of the file
// names at a repository root.
//
// Search and root listing tolerate GitHub rate limiting by retrying with
// exponential backoff; every other error is returned to the caller untouched.
package githubreconciler
