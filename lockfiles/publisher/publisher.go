/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package publisher reconciles the remote synchronization branch of a
// repository with the outcome of a lock file refresh.
//
// Without changes the branch is deleted, and a branch that is already gone
// counts as success. With changes a single commit is created on a freshly
// (re)created local branch; it is pushed with a lease only when its content
// differs from the remote branch tip.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/lockfilesync/lockfiles/changes"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/clonemanager"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	// DefaultBranch is the synchronization branch name.
	DefaultBranch = "lockfiles"
	// CommitMessage is used for every synchronization commit.
	CommitMessage = "build: update lockfiles"
)

// Result names what happened to the synchronization branch.
type Result string

const (
	// ResultBranchDeleted means no change was found and an existing branch
	// was removed.
	ResultBranchDeleted Result = "branch-deleted"
	// ResultBranchAbsent means no change was found and there was no branch
	// to remove.
	ResultBranchAbsent Result = "branch-absent"
	// ResultPublished means a new commit was pushed.
	ResultPublished Result = "published"
	// ResultSkippedIdentical means the remote branch already had the same
	// content.
	ResultSkippedIdentical Result = "skipped-identical"
)

// ErrLeaseRejected is returned when the remote branch moved after the clone
// was taken and the push was refused.
var ErrLeaseRejected = errors.New("push rejected: remote branch moved since it was fetched")

// Publication reports the result of a Publish call.
type Publication struct {
	Result Result
	// Commit is the local synchronization commit, when one was created.
	Commit string
}

// Publisher manages the synchronization branch through a git runner.
type Publisher struct {
	git     gitexec.Runner
	branch  string
	message string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBranch overrides DefaultBranch.
func WithBranch(branch string) Option {
	return func(p *Publisher) {
		p.branch = branch
	}
}

// New constructs a Publisher.
func New(git gitexec.Runner, opts ...Option) (*Publisher, error) {
	if git == nil {
		return nil, errors.New("git runner cannot be nil")
	}
	p := &Publisher{
		git:     git,
		branch:  DefaultBranch,
		message: CommitMessage,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := validBranchName(p.branch); err != nil {
		return nil, err
	}
	return p, nil
}

func validBranchName(name string) error {
	switch {
	case name == "":
		return errors.New("branch name cannot be empty")
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("branch name %q cannot start with a dash", name)
	case strings.ContainsAny(name, " :~^?*[\\"):
		return fmt.Errorf("branch name %q contains invalid characters", name)
	}
	return nil
}

// Branch returns the synchronization branch name.
func (p *Publisher) Branch() string {
	return p.branch
}

// Publish reconciles the remote branch with outcome.
func (p *Publisher) Publish(ctx context.Context, lease *clonemanager.Lease, outcome changes.Outcome) (Publication, error) {
	if outcome.HasChange() {
		return p.publishChange(ctx, lease)
	}
	return p.deleteBranch(ctx, lease)
}

// deleteBranch removes the remote branch. A branch that does not exist is the
// desired end state and is not an error.
func (p *Publisher) deleteBranch(ctx context.Context, lease *clonemanager.Lease) (Publication, error) {
	log := clog.FromContext(ctx)

	_, err := p.git.Run(ctx, lease.Dir(), "push", "origin", ":"+p.branch)
	switch {
	case err == nil:
		log.Infof("No changes, deleted remote branch %s", p.branch)
		return Publication{Result: ResultBranchDeleted}, nil
	case isMissingRemoteRef(err):
		log.Infof("No changes and no remote branch %s", p.branch)
		return Publication{Result: ResultBranchAbsent}, nil
	default:
		return Publication{}, fmt.Errorf("deleting remote branch %s: %w", p.branch, err)
	}
}

func isMissingRemoteRef(err error) bool {
	var gerr *gitexec.Error
	if !errors.As(err, &gerr) || gerr.ExitCode <= 0 {
		return false
	}
	return strings.Contains(gerr.Stderr, "remote ref does not exist")
}

func (p *Publisher) publishChange(ctx context.Context, lease *clonemanager.Lease) (Publication, error) {
	log := clog.FromContext(ctx)
	dir := lease.Dir()

	if _, err := p.git.Run(ctx, dir, "switch", "--quiet", "--force-create", p.branch); err != nil {
		return Publication{}, fmt.Errorf("creating branch %s: %w", p.branch, err)
	}
	if _, err := p.git.Run(ctx, dir, "commit", "--quiet", "--all", "--message="+p.message); err != nil {
		return Publication{}, fmt.Errorf("committing changes: %w", err)
	}

	repo, err := lease.Repo()
	if err != nil {
		return Publication{}, err
	}
	head, err := repo.Head()
	if err != nil {
		return Publication{}, fmt.Errorf("resolving new commit: %w", err)
	}
	pub := Publication{Commit: head.Hash().String()}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", p.branch), true)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		log.Infof("Remote branch %s does not exist yet", p.branch)
	case err != nil:
		return Publication{}, fmt.Errorf("resolving origin/%s: %w", p.branch, err)
	default:
		stat, err := p.git.Run(ctx, dir, "diff", "--shortstat", "origin/"+p.branch)
		if err != nil {
			return Publication{}, fmt.Errorf("comparing with origin/%s: %w", p.branch, err)
		}
		if strings.TrimSpace(stat) == "" {
			log.Infof("Lockfiles are already the same as origin/%s (%s)", p.branch, remoteRef.Hash())
			pub.Result = ResultSkippedIdentical
			return pub, nil
		}
		log.Infof("Differences to origin/%s: %s", p.branch, strings.TrimSpace(stat))
	}

	if _, err := p.git.Run(ctx, dir, "push", "--force-with-lease", "origin", p.branch); err != nil {
		if isStaleLease(err) {
			return Publication{}, fmt.Errorf("pushing %s: %w: %w", p.branch, ErrLeaseRejected, err)
		}
		return Publication{}, fmt.Errorf("pushing %s: %w", p.branch, err)
	}

	log.Infof("Published %s at %s", p.branch, pub.Commit)
	pub.Result = ResultPublished
	return pub, nil
}

func isStaleLease(err error) bool {
	var gerr *gitexec.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return strings.Contains(gerr.Stderr, "stale info")
}
