/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives the lock file refresh of a list of
// repositories, one repository at a time:
//
//  1. Detect recognized lock files from the repository root listing
//  2. Skip the repository without side effects when none are present
//  3. Acquire a shallow clone
//  4. Run every refresh command, in order
//  5. Classify the working tree
//  6. Publish, skip, or delete the synchronization branch
//  7. Release the clone, whatever happened before
//
// A failure in any step ends that repository's run and is recorded in its
// Report; the batch moves on to the next repository.
package orchestrator
