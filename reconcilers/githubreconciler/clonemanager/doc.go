/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package clonemanager provides ephemeral git clones for fleet-wide
// reconcilers. A Manager is configured with the git runner for an automation
// and hands out Lease handles that:
//   - Own a fresh temporary directory named after the repository.
//   - Hold a shallow clone that carries every remote branch, so callers can
//     compare against branches other than the default one.
//   - Remove the directory, recursively, when released.
//
// Callers acquire one lease per reconciliation and defer Release immediately:
//
//	lease, err := mgr.Acquire(ctx, repo)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release(ctx)
//
// Clones are never reused; every reconciliation starts from the remote state.
package clonemanager
