/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package testing provides local git remotes for clonemanager based tests.
package testing

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultBranch is the branch NewRemote populates.
const DefaultBranch = "master"

// Remote is a bare repository on local disk together with a private working
// clone used to push commits to it out of band.
type Remote struct {
	t       testing.TB
	dir     string
	workDir string
	work    *git.Repository
}

// NewRemote creates a bare repository whose default branch holds files.
func NewRemote(t testing.TB, files map[string]string) *Remote {
	t.Helper()

	base := t.TempDir()
	dir := filepath.Join(base, "remote.git")
	workDir := filepath.Join(base, "work")

	if _, err := git.PlainInit(dir, true); err != nil {
		t.Fatalf("PlainInit bare: %v", err)
	}
	work, err := git.PlainInit(workDir, false)
	if err != nil {
		t.Fatalf("PlainInit work: %v", err)
	}
	if _, err := work.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{dir}}); err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}

	r := &Remote{t: t, dir: dir, workDir: workDir, work: work}
	r.commit(files, "initial")
	r.push(DefaultBranch)
	return r
}

// Dir returns the bare repository path.
func (r *Remote) Dir() string {
	return r.dir
}

// URL returns a file:// URL suitable for shallow cloning with the git CLI.
func (r *Remote) URL() string {
	return "file://" + r.dir
}

// PushBranch commits files on top of the default branch and force pushes the
// result to branch. It returns the new commit hash.
func (r *Remote) PushBranch(branch string, files map[string]string, message string) string {
	r.t.Helper()

	base, err := r.work.Reference(plumbing.NewBranchReferenceName(DefaultBranch), true)
	if err != nil {
		r.t.Fatalf("resolving %s: %v", DefaultBranch, err)
	}
	ref := plumbing.NewBranchReferenceName(branch)
	if err := r.work.Storer.SetReference(plumbing.NewHashReference(ref, base.Hash())); err != nil {
		r.t.Fatalf("SetReference: %v", err)
	}
	r.checkout(ref)
	hash := r.commit(files, message)
	r.push(branch)
	r.checkout(plumbing.NewBranchReferenceName(DefaultBranch))
	return hash
}

// Branch returns the tip commit of branch in the bare repository, or nil when
// the branch does not exist.
func (r *Remote) Branch(branch string) *object.Commit {
	r.t.Helper()

	repo, err := git.PlainOpen(r.dir)
	if err != nil {
		r.t.Fatalf("PlainOpen: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		r.t.Fatalf("Reference %s: %v", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		r.t.Fatalf("CommitObject: %v", err)
	}
	return commit
}

// Head returns the tip commit of the default branch.
func (r *Remote) Head() *object.Commit {
	r.t.Helper()
	return r.Branch(DefaultBranch)
}

// ChangedFiles lists the paths commit changes relative to its first parent.
func (r *Remote) ChangedFiles(commit *object.Commit) []string {
	r.t.Helper()

	parent, err := commit.Parent(0)
	if err != nil {
		r.t.Fatalf("Parent: %v", err)
	}
	from, err := parent.Tree()
	if err != nil {
		r.t.Fatalf("parent Tree: %v", err)
	}
	to, err := commit.Tree()
	if err != nil {
		r.t.Fatalf("Tree: %v", err)
	}
	changes, err := from.Diff(to)
	if err != nil {
		r.t.Fatalf("Diff: %v", err)
	}

	var paths []string
	for _, c := range changes {
		name := c.To.Name
		if name == "" {
			name = c.From.Name
		}
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// FileContent returns the content of path at commit.
func (r *Remote) FileContent(commit *object.Commit, path string) string {
	r.t.Helper()

	f, err := commit.File(path)
	if err != nil {
		r.t.Fatalf("File %s: %v", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		r.t.Fatalf("Contents %s: %v", path, err)
	}
	return content
}

func (r *Remote) checkout(ref plumbing.ReferenceName) {
	r.t.Helper()

	wt, err := r.work.Worktree()
	if err != nil {
		r.t.Fatalf("Worktree: %v", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Force: true}); err != nil {
		r.t.Fatalf("Checkout %s: %v", ref, err)
	}
}

func (r *Remote) commit(files map[string]string, message string) string {
	r.t.Helper()

	wt, err := r.work.Worktree()
	if err != nil {
		r.t.Fatalf("Worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(r.workDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			r.t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			r.t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			r.t.Fatalf("Add %s: %v", name, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func (r *Remote) push(branch string) {
	r.t.Helper()

	ref := plumbing.NewBranchReferenceName(branch)
	err := r.work.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec("+" + ref.String() + ":" + ref.String())},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		r.t.Fatalf("Push %s: %v", branch, err)
	}
}
