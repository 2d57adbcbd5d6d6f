/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package updater runs lock file refresh commands inside a workspace.
//
// Commands run one after another in catalog order, each through a restricted
// login shell under nice, with every inherited environment variable dropped
// except HOME. The first failing command aborts the run.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"chainguard.dev/lockfilesync/lockfiles/catalog"
	"github.com/chainguard-dev/clog"
)

// Command is a fully resolved process invocation.
type Command struct {
	Dir  string
	Args []string
	Env  []string
}

// Executor starts a Command and waits for it to exit.
type Executor interface {
	Execute(ctx context.Context, cmd Command) error
}

// ProcessExecutor runs commands as child processes, streaming their output to
// Output.
type ProcessExecutor struct {
	Output io.Writer
}

// Execute implements Executor.
func (p ProcessExecutor) Execute(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}
	out := p.Output
	if out == nil {
		out = os.Stderr
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	// A non-nil empty slice would still mean "no environment"; never nil so the
	// parent environment is not inherited.
	cmd.Env = append([]string{}, c.Env...)
	cmd.Stdout = out
	cmd.Stderr = out
	// Grandchildren may keep the output pipes open after a cancelled shell
	// is killed.
	cmd.WaitDelay = time.Second
	return cmd.Run()
}

// CommandError reports a refresh command that did not succeed.
type CommandError struct {
	Lockfile string
	Args     []string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("refreshing %s with %q: %v", e.Lockfile, e.Args, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes the refresh commands of a set of lock files.
type Runner struct {
	executor Executor
	home     string
	timeout  time.Duration
	nice     string
	shell    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor replaces the process executor, mainly for tests.
func WithExecutor(e Executor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithHome sets the HOME passed to refresh commands.
func WithHome(home string) Option {
	return func(r *Runner) {
		r.home = home
	}
}

// WithTimeout bounds every single refresh command. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// New constructs a Runner. HOME defaults to the current user's home directory.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		executor: ProcessExecutor{},
		nice:     "nice",
		shell:    "bash",
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		r.home = home
	}
	if r.timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}
	return r, nil
}

// Command returns the invocation used to refresh spec inside dir.
func (r *Runner) Command(dir string, spec catalog.Spec) Command {
	return Command{
		Dir:  dir,
		Args: []string{r.nice, r.shell, "-rlc", "set -x && " + spec.Command},
		Env:  []string{"HOME=" + r.home},
	}
}

// Run refreshes every spec whose lock file exists in dir, sequentially and in
// the given order. It stops at the first failure.
func (r *Runner) Run(ctx context.Context, dir string, specs []catalog.Spec) error {
	log := clog.FromContext(ctx)

	for _, spec := range specs {
		info, err := os.Stat(filepath.Join(dir, spec.Filename))
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warnf("Lock file %s not present in workspace, skipping", spec.Filename)
			continue
		case err != nil:
			return fmt.Errorf("checking %s: %w", spec.Filename, err)
		case !info.Mode().IsRegular():
			log.Warnf("Lock file %s is not a regular file, skipping", spec.Filename)
			continue
		}

		cmd := r.Command(dir, spec)
		log.Infof("Running update command for %s (%s)", spec.Filename, spec.Ecosystem)

		if err := r.execute(ctx, cmd); err != nil {
			return &CommandError{Lockfile: spec.Filename, Args: cmd.Args, Err: err}
		}
	}

	log.Info("All update commands done")
	return nil
}

func (r *Runner) execute(ctx context.Context, cmd Command) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.executor.Execute(ctx, cmd)
}
