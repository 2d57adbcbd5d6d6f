/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
)

const cloneDirPrefix = "lockfiles-"

// repoURL resolves the remote git URL for a repository. Tests can override
// this to provide local filesystem paths by assigning a custom function to
// repoURL.
var repoURL = defaultRemoteURL

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Manager creates clones for callers. It holds no state per repository; at
// most one lease per repository is expected to be live at a time.
type Manager struct {
	git     gitexec.Runner
	tempDir string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTempDir places clones below dir instead of the system temp directory.
func WithTempDir(dir string) Option {
	return func(m *Manager) {
		m.tempDir = dir
	}
}

// Lease is an acquired clone. It is valid until Release.
type Lease struct {
	repo githubreconciler.Repository
	path string

	mu       sync.Mutex
	released bool
}

// New constructs a Manager around a git runner.
func New(runner gitexec.Runner, opts ...Option) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("git runner cannot be nil")
	}
	m := &Manager{git: runner}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// DirPrefix returns the temporary directory prefix for repo. Every run of
// characters outside [a-zA-Z0-9] collapses into a single dash.
func DirPrefix(repo githubreconciler.Repository) string {
	return unsafePathChars.ReplaceAllString(cloneDirPrefix+repo.FullName()+"-", "-")
}

// Acquire clones repo with depth 1 and all branches into a new temporary
// directory. A failed clone leaves nothing behind on disk.
func (m *Manager) Acquire(ctx context.Context, repo githubreconciler.Repository) (*Lease, error) {
	remote := repoURL(repo)
	switch {
	case repo.Owner == "":
		return nil, errors.New("repository owner cannot be empty")
	case repo.Name == "":
		return nil, errors.New("repository name cannot be empty")
	case remote == "":
		return nil, errors.New("repository clone URL cannot be empty")
	}

	dir, err := os.MkdirTemp(m.tempDir, DirPrefix(repo))
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	clog.FromContext(ctx).Infof("Cloning repository %s into %s", remote, dir)
	if _, err := m.git.Run(ctx, dir, "clone", "--quiet", "--depth=1", "--no-single-branch", "--", remote, dir); err != nil {
		if rerr := os.RemoveAll(dir); rerr != nil {
			clog.FromContext(ctx).Warnf("Removing failed clone %s: %v", dir, rerr)
		}
		return nil, fmt.Errorf("cloning repository %s: %w", repo.FullName(), err)
	}

	return &Lease{repo: repo, path: dir}, nil
}

func defaultRemoteURL(repo githubreconciler.Repository) string {
	return repo.SSHURL
}

// ID returns a clone ID based on the underlying working tree path.
func (l *Lease) ID() string {
	return filepath.Base(l.path)
}

// Dir returns the absolute path to the lease's working directory.
func (l *Lease) Dir() string {
	return l.path
}

// Repository returns the repository the lease was acquired for.
func (l *Lease) Repository() githubreconciler.Repository {
	return l.repo
}

// Repo opens the clone with go-git for read access to refs and objects.
func (l *Lease) Repo() (*git.Repository, error) {
	l.mu.Lock()
	released := l.released
	l.mu.Unlock()
	if released {
		return nil, errors.New("lease already released")
	}

	repo, err := git.PlainOpen(l.path)
	if err != nil {
		return nil, fmt.Errorf("opening clone: %w", err)
	}
	return repo, nil
}

// Release removes the working directory recursively. It is safe to call more
// than once; only the first call does any work.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true

	clog.FromContext(ctx).Debugf("Removing clone %s", l.path)
	if err := os.RemoveAll(l.path); err != nil {
		return fmt.Errorf("removing clone %s: %w", l.path, err)
	}
	return nil
}
