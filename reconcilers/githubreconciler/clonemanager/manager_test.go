/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	clonetesting "chainguard.dev/lockfilesync/reconcilers/githubreconciler/clonemanager/testing"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	"github.com/go-git/go-git/v5/plumbing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func useRemote(t *testing.T, remote *clonetesting.Remote) {
	t.Helper()
	repoURL = func(githubreconciler.Repository) string { return remote.URL() }
	t.Cleanup(func() { repoURL = defaultRemoteURL })
}

func testRepository() githubreconciler.Repository {
	return githubreconciler.Repository{
		Owner:         "tests",
		Name:          "hello.world",
		SSHURL:        "git@github.com:tests/hello.world.git",
		DefaultBranch: clonetesting.DefaultBranch,
	}
}

func TestLeaseLifecycle(t *testing.T) {
	requireGit(t)
	ctx := t.Context()

	remote := clonetesting.NewRemote(t, map[string]string{"package-lock.json": "{}\n"})
	syncHash := remote.PushBranch("lockfiles", map[string]string{"package-lock.json": "{\"v\":2}\n"}, "build: update lockfiles")
	useRemote(t, remote)

	tmp := t.TempDir()
	mgr, err := New(gitexec.New(), WithTempDir(tmp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	lease, err := mgr.Acquire(ctx, testRepository())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	dir := lease.Dir()
	if filepath.Dir(dir) != tmp {
		t.Errorf("clone %s not below %s", dir, tmp)
	}
	if !strings.HasPrefix(lease.ID(), "lockfiles-tests-hello-world-") {
		t.Errorf("ID = %q, want repository derived prefix", lease.ID())
	}
	if lease.Repository().FullName() != "tests/hello.world" {
		t.Errorf("Repository = %v", lease.Repository())
	}
	if _, err := os.Stat(filepath.Join(dir, "package-lock.json")); err != nil {
		t.Errorf("expected checked out file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "shallow")); err != nil {
		t.Errorf("expected a shallow clone: %v", err)
	}

	repo, err := lease.Repo()
	if err != nil {
		t.Fatalf("Repo: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "lockfiles"), true)
	if err != nil {
		t.Fatalf("expected origin/lockfiles to be fetched: %v", err)
	}
	if ref.Hash().String() != syncHash {
		t.Errorf("origin/lockfiles = %s, want %s", ref.Hash(), syncHash)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected clone removed, got err=%v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if _, err := lease.Repo(); err == nil {
		t.Error("Repo after Release should fail")
	}
}

func TestAcquireCloneFailureLeavesNothing(t *testing.T) {
	requireGit(t)

	missing := filepath.Join(t.TempDir(), "does-not-exist.git")
	repoURL = func(githubreconciler.Repository) string { return "file://" + missing }
	t.Cleanup(func() { repoURL = defaultRemoteURL })

	tmp := t.TempDir()
	mgr, err := New(gitexec.New(), WithTempDir(tmp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = mgr.Acquire(t.Context(), testRepository())
	if err == nil {
		t.Fatal("expected clone error")
	}
	var gerr *gitexec.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want wrapped *gitexec.Error", err)
	}
	if gerr.Args[0] != "clone" {
		t.Errorf("failing command = %v, want clone", gerr.Args)
	}
	if !strings.Contains(err.Error(), "tests/hello.world") {
		t.Errorf("error %q does not name the repository", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestAcquireValidation(t *testing.T) {
	mgr, err := New(gitexec.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		repo githubreconciler.Repository
	}{
		{name: "no owner", repo: githubreconciler.Repository{Name: "x", SSHURL: "git@github.com:o/x.git"}},
		{name: "no name", repo: githubreconciler.Repository{Owner: "o", SSHURL: "git@github.com:o/x.git"}},
		{name: "no url", repo: githubreconciler.Repository{Owner: "o", Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Acquire(t.Context(), tt.repo); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestDirPrefix(t *testing.T) {
	tests := []struct {
		owner, name string
		want        string
	}{
		{owner: "octo", name: "hello", want: "lockfiles-octo-hello-"},
		{owner: "EdJoPaTo", name: "website-stalker", want: "lockfiles-EdJoPaTo-website-stalker-"},
		{owner: "octo", name: "a..b__c", want: "lockfiles-octo-a-b-c-"},
		{owner: "octo", name: "-x-", want: "lockfiles-octo-x-"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := DirPrefix(githubreconciler.Repository{Owner: tt.owner, Name: tt.name})
			if got != tt.want {
				t.Errorf("DirPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}
