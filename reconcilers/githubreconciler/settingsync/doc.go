/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package settingsync converges the GitHub settings of a set of repositories
// to one house policy.
//
// For every repository the Synchronizer:
//
//   - removes legacy branch protections (rulesets replace them)
//   - subscribes the token owner to notifications
//   - allows squash merges only, with auto-merge and branch deletion on merge
//   - enables secret scanning (public repositories) and push protection
//   - enables Actions and limits the workflow token to read access
//   - for public repositories, maintains three rulesets: "Tags except
//     versions", "Version Tags" and "Default Branch Protection"
//
// The status checks required on the default branch are derived from the
// check runs of its current tip, filtered through WantedChecks.
//
// Independent requests for one repository are issued concurrently.
// Repositories themselves are processed one after the other.
package settingsync
