/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changes

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []Entry
	}{{
		name: "empty",
	}, {
		name: "modified in worktree",
		out:  " M package-lock.json\n",
		want: []Entry{{Index: ' ', Worktree: 'M', Path: "package-lock.json"}},
	}, {
		name: "deleted and re-added",
		out:  " D deno.lock\nA  Cargo.lock\n",
		want: []Entry{
			{Index: ' ', Worktree: 'D', Path: "deno.lock"},
			{Index: 'A', Worktree: ' ', Path: "Cargo.lock"},
		},
	}, {
		name: "untracked",
		out:  "?? node_modules/\n",
		want: []Entry{{Index: '?', Worktree: '?', Path: "node_modules/"}},
	}, {
		name: "rename",
		out:  "R  old.lock -> new.lock\n",
		want: []Entry{{Index: 'R', Worktree: ' ', OrigPath: "old.lock", Path: "new.lock"}},
	}, {
		name: "quoted paths",
		out:  "R  \"a b.lock\" -> \"caf\\303\\251.lock\"\n M \"tab\\there\"\n",
		want: []Entry{
			{Index: 'R', Worktree: ' ', OrigPath: "a b.lock", Path: "café.lock"},
			{Index: ' ', Worktree: 'M', Path: "tab\there"},
		},
	}, {
		name: "spaces in a bare path",
		out:  " M my file -> x.lock\n",
		want: []Entry{{Index: ' ', Worktree: 'M', Path: "my file -> x.lock"}},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.out)
			if err != nil {
				t.Fatalf("ParseStatus: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStatusRejectsAnomalies(t *testing.T) {
	for _, out := range []string{
		"M\n",
		"MM\n",
		"XY file\n",
		" Mfile\n",
		"   file\n",
		"?M file\n",
		"R  old.lock\n",
		"M  \"unterminated\n",
		"M  \"a\" trailing\n",
		"warning: something unexpected\n",
	} {
		t.Run(out, func(t *testing.T) {
			if _, err := ParseStatus(out); err == nil {
				t.Errorf("ParseStatus(%q) succeeded, want error", out)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    Outcome
		wantErr error
	}{{
		name: "nothing",
		want: Outcome{Kind: NoChange},
	}, {
		name: "only untracked",
		entries: []Entry{
			{Index: '?', Worktree: '?', Path: "junk.txt"},
		},
		wantErr: ErrUntrackedOnly,
	}, {
		name: "single lock file",
		entries: []Entry{
			{Index: ' ', Worktree: 'M', Path: "Cargo.lock"},
			{Index: '?', Worktree: '?', Path: "target/"},
		},
		want: Outcome{Kind: HasChange, Paths: []string{"Cargo.lock"}, Untracked: []string{"target/"}},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.entries)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Classify error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("outcome mismatch (-want +got):\n%s", diff)
			}
			if got.HasChange() != (tt.want.Kind == HasChange) {
				t.Errorf("HasChange() = %v", got.HasChange())
			}
		})
	}
}

type fakeGit struct {
	out string
	err error
}

func (f fakeGit) Run(context.Context, string, ...string) (string, error) {
	return f.out, f.err
}

func TestEvaluateFailures(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewEvaluator(fakeGit{err: boom}).Evaluate(t.Context(), "/nowhere"); !errors.Is(err, boom) {
		t.Errorf("Evaluate error = %v, want %v", err, boom)
	}
	if _, err := NewEvaluator(fakeGit{out: "garbage\n"}).Evaluate(t.Context(), "/nowhere"); err == nil {
		t.Error("expected parse error")
	}
}

func TestEvaluateWorkspace(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	for _, name := range []string{"Cargo.lock", "deno.lock"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("v1\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	eval := NewEvaluator(gitexec.New())

	got, err := eval.Evaluate(t.Context(), dir)
	if err != nil {
		t.Fatalf("Evaluate clean: %v", err)
	}
	if got.HasChange() {
		t.Errorf("clean tree reported %v", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "Cargo.lock"), []byte("v2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = eval.Evaluate(t.Context(), dir)
	if err != nil {
		t.Fatalf("Evaluate dirty: %v", err)
	}
	if diff := cmp.Diff(Outcome{Kind: HasChange, Paths: []string{"Cargo.lock"}}, got); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateUntrackedOnlyWorkspace(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package-lock.json"), []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := wt.Add("package-lock.json"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "npm-shrinkwrap.json"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := NewEvaluator(gitexec.New()).Evaluate(t.Context(), dir)
	if !errors.Is(err, ErrUntrackedOnly) {
		t.Fatalf("Evaluate error = %v, want %v", err, ErrUntrackedOnly)
	}
	if got.HasChange() {
		t.Errorf("untracked-only tree reported %v", got)
	}
}
