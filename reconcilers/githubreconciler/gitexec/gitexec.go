/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Runner executes git subcommands inside a directory.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Error describes a git invocation that did not exit successfully.
type Error struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CLI is a Runner backed by the git binary found on PATH.
type CLI struct {
	binary string
	env    []string
}

// Option configures a CLI.
type Option func(*CLI)

// WithBinary overrides the git executable.
func WithBinary(path string) Option {
	return func(c *CLI) {
		c.binary = path
	}
}

// WithIdentity sets the author and committer used for commits. Identity is
// used as the name and, when it lacks a domain, suffixed with
// @users.noreply.github.com for the email. An empty identity leaves git's
// own configuration in charge.
func WithIdentity(identity string) Option {
	return func(c *CLI) {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			return
		}
		email := identity
		if !strings.Contains(email, "@") {
			email = fmt.Sprintf("%s@users.noreply.github.com", email)
		}
		c.env = append(c.env,
			"GIT_AUTHOR_NAME="+identity,
			"GIT_AUTHOR_EMAIL="+email,
			"GIT_COMMITTER_NAME="+identity,
			"GIT_COMMITTER_EMAIL="+email,
		)
	}
}

// WithEnv appends extra environment entries (KEY=VALUE) to every invocation.
func WithEnv(env ...string) Option {
	return func(c *CLI) {
		c.env = append(c.env, env...)
	}
}

// New constructs a CLI runner.
func New(opts ...Option) *CLI {
	c := &CLI{binary: "git"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes git with args in dir and returns its standard output.
func (c *CLI) Run(ctx context.Context, dir string, args ...string) (string, error) {
	clog.FromContext(ctx).Debugf("git %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	cmd.Env = c.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		gerr := &Error{
			Args:     append([]string(nil), args...),
			Dir:      dir,
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			gerr.ExitCode = exitErr.ExitCode()
		}
		return stdout.String(), gerr
	}

	return stdout.String(), nil
}

// untranslated pins git's messages to English. Callers classify failures by
// their stderr text, so these entries come last and win over inherited or
// configured locale settings.
var untranslated = []string{"LC_ALL=C", "LANGUAGE="}

func (c *CLI) environ() []string {
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	env = append(env, c.env...)
	return append(env, untranslated...)
}

// IsExitError reports whether err came from git exiting with a nonzero status,
// as opposed to git failing to start at all.
func IsExitError(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.ExitCode > 0
}
