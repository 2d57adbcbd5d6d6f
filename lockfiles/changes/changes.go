/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changes classifies the state of a workspace after its lock files
// were refreshed.
package changes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	"github.com/chainguard-dev/clog"
)

// Kind distinguishes the two possible outcomes.
type Kind int

const (
	NoChange Kind = iota
	HasChange
)

func (k Kind) String() string {
	switch k {
	case NoChange:
		return "no-change"
	case HasChange:
		return "has-change"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrUntrackedOnly reports a working tree whose only status entries are
// files git does not track. Such a tree is neither clean nor committable.
var ErrUntrackedOnly = errors.New("workspace has only untracked changes")

// Outcome is the classified working tree state. Paths lists tracked paths
// with modifications; Untracked lists files git does not track, which a
// commit of tracked changes would not include.
type Outcome struct {
	Kind      Kind
	Paths     []string
	Untracked []string
}

// HasChange reports whether the outcome carries tracked changes.
func (o Outcome) HasChange() bool {
	return o.Kind == HasChange
}

// Entry is one line of `git status --porcelain`.
type Entry struct {
	// Index and Worktree are the X and Y status letters.
	Index    byte
	Worktree byte
	Path     string
	// OrigPath is set for renames and copies.
	OrigPath string
}

// Untracked reports whether git does not track the path.
func (e Entry) Untracked() bool {
	return e.Index == '?' || e.Index == '!'
}

const statusLetters = " MTADRCU?!"

// ParseStatus parses porcelain v1 output. Any line that does not have the
// documented shape is an error.
func ParseStatus(out string) ([]Entry, error) {
	var entries []Entry
	for i, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("status line %d %q: %w", i+1, line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	if len(line) < 4 || line[2] != ' ' {
		return Entry{}, fmt.Errorf("malformed entry")
	}
	x, y := line[0], line[1]
	if !strings.ContainsRune(statusLetters, rune(x)) || !strings.ContainsRune(statusLetters, rune(y)) {
		return Entry{}, fmt.Errorf("unknown status %q", line[:2])
	}
	if (x == '?') != (y == '?') || (x == '!') != (y == '!') {
		return Entry{}, fmt.Errorf("inconsistent status %q", line[:2])
	}
	if x == ' ' && y == ' ' {
		return Entry{}, fmt.Errorf("empty status")
	}

	entry := Entry{Index: x, Worktree: y}
	renamed := x == 'R' || x == 'C' || y == 'R' || y == 'C'
	first, rest, err := parsePath(line[3:], renamed)
	if err != nil {
		return Entry{}, err
	}

	if renamed {
		after, ok := strings.CutPrefix(rest, " -> ")
		if !ok {
			return Entry{}, fmt.Errorf("rename without target")
		}
		target, tail, err := parsePath(after, false)
		if err != nil {
			return Entry{}, err
		}
		if tail != "" {
			return Entry{}, fmt.Errorf("trailing data %q", tail)
		}
		entry.OrigPath, entry.Path = first, target
		return entry, nil
	}

	if rest != "" {
		return Entry{}, fmt.Errorf("trailing data %q", rest)
	}
	entry.Path = first
	return entry, nil
}

// parsePath reads one path, C-quoted or bare, and returns what follows it. A
// bare source path of a rename ends at the arrow.
func parsePath(s string, renameSource bool) (string, string, error) {
	if s == "" {
		return "", "", fmt.Errorf("missing path")
	}
	if s[0] != '"' {
		if renameSource {
			if before, after, ok := strings.Cut(s, " -> "); ok {
				return before, " -> " + after, nil
			}
		}
		return s, "", nil
	}

	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			p, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", "", fmt.Errorf("unquoting path: %w", err)
			}
			return p, s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted path")
}

// Classify turns status entries into an Outcome. Only an empty status is
// NoChange. Untracked entries next to tracked changes are carried along in
// Untracked; untracked entries on their own are ErrUntrackedOnly.
func Classify(entries []Entry) (Outcome, error) {
	var o Outcome
	for _, e := range entries {
		if e.Untracked() {
			o.Untracked = append(o.Untracked, e.Path)
			continue
		}
		o.Paths = append(o.Paths, e.Path)
	}
	switch {
	case len(o.Paths) > 0:
		o.Kind = HasChange
	case len(o.Untracked) > 0:
		return Outcome{}, fmt.Errorf("%w: %v", ErrUntrackedOnly, o.Untracked)
	}
	return o, nil
}

// Evaluator inspects a workspace with git status.
type Evaluator struct {
	git gitexec.Runner
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(git gitexec.Runner) *Evaluator {
	return &Evaluator{git: git}
}

// Evaluate classifies the working tree at dir. It must only be called once
// every refresh command has succeeded.
func (e *Evaluator) Evaluate(ctx context.Context, dir string) (Outcome, error) {
	out, err := e.git.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return Outcome{}, fmt.Errorf("reading workspace status: %w", err)
	}

	entries, err := ParseStatus(out)
	if err != nil {
		return Outcome{}, fmt.Errorf("parsing workspace status: %w", err)
	}

	o, err := Classify(entries)
	if err != nil {
		return Outcome{}, err
	}
	log := clog.FromContext(ctx)
	if len(o.Untracked) > 0 {
		log.Warnf("Ignoring untracked files left by update commands: %v", o.Untracked)
	}
	log.Infof("Workspace status %s: %v", o.Kind, o.Paths)
	return o, nil
}
