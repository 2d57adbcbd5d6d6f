/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/lockfilesync/lockfiles/catalog"
	"chainguard.dev/lockfilesync/lockfiles/changes"
	"chainguard.dev/lockfilesync/lockfiles/publisher"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/clonemanager"
	"github.com/chainguard-dev/clog"
)

// RootLister returns the file names at a repository root.
type RootLister interface {
	RootFiles(ctx context.Context, repo githubreconciler.Repository) ([]string, error)
}

// Workspaces hands out clones.
type Workspaces interface {
	Acquire(ctx context.Context, repo githubreconciler.Repository) (*clonemanager.Lease, error)
}

// Updater refreshes lock files inside a directory.
type Updater interface {
	Run(ctx context.Context, dir string, specs []catalog.Spec) error
}

// Evaluator classifies a directory's working tree.
type Evaluator interface {
	Evaluate(ctx context.Context, dir string) (changes.Outcome, error)
}

// Publisher reconciles the synchronization branch.
type Publisher interface {
	Publish(ctx context.Context, lease *clonemanager.Lease, outcome changes.Outcome) (publisher.Publication, error)
}

// Stage is a step of a repository run.
type Stage string

const (
	StageDetect   Stage = "detect"
	StageClone    Stage = "clone"
	StageUpdate   Stage = "update"
	StageEvaluate Stage = "evaluate"
	StagePublish  Stage = "publish"
	StageRelease  Stage = "release"
	StageDone     Stage = "done"
)

// Report records the run of a single repository.
type Report struct {
	Repository githubreconciler.Repository
	// Lockfiles lists the detected lock files; empty means skipped.
	Lockfiles   []string
	Outcome     changes.Outcome
	Publication publisher.Publication
	// Stage is the last stage entered. For failed runs it is the stage that
	// failed.
	Stage    Stage
	Err      error
	Duration time.Duration
}

// Skipped reports whether the repository had no recognized lock file.
func (r Report) Skipped() bool {
	return r.Err == nil && len(r.Lockfiles) == 0
}

// Status summarizes the report in one word.
func (r Report) Status() string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.Skipped():
		return "skipped"
	default:
		return string(r.Publication.Result)
	}
}

// Summary aggregates the reports of a batch in processing order.
type Summary struct {
	Reports []Report
}

// Failed returns the reports of failed runs.
func (s Summary) Failed() []Report {
	var failed []Report
	for _, r := range s.Reports {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err joins the errors of all failed runs, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", r.Repository.FullName(), r.Err))
	}
	return errors.Join(errs...)
}

// Orchestrator runs the lock file refresh for repositories.
type Orchestrator struct {
	catalog    *catalog.Catalog
	roots      RootLister
	workspaces Workspaces
	updater    Updater
	evaluator  Evaluator
	publisher  Publisher
	metrics    *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records run results in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New constructs an Orchestrator. Every collaborator is required.
func New(
	cat *catalog.Catalog,
	roots RootLister,
	workspaces Workspaces,
	updater Updater,
	evaluator Evaluator,
	pub Publisher,
	opts ...Option,
) (*Orchestrator, error) {
	switch {
	case cat == nil:
		return nil, errors.New("catalog cannot be nil")
	case roots == nil:
		return nil, errors.New("root lister cannot be nil")
	case workspaces == nil:
		return nil, errors.New("workspaces cannot be nil")
	case updater == nil:
		return nil, errors.New("updater cannot be nil")
	case evaluator == nil:
		return nil, errors.New("evaluator cannot be nil")
	case pub == nil:
		return nil, errors.New("publisher cannot be nil")
	}

	o := &Orchestrator{
		catalog:    cat,
		roots:      roots,
		workspaces: workspaces,
		updater:    updater,
		evaluator:  evaluator,
		publisher:  pub,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes repos strictly in order. A failed repository does not stop
// the batch; a cancelled context does, and the remaining repositories are not
// reported.
func (o *Orchestrator) Run(ctx context.Context, repos []githubreconciler.Repository) Summary {
	var summary Summary
	for i, repo := range repos {
		if err := ctx.Err(); err != nil {
			clog.FromContext(ctx).Warnf("Stopping before %s (%d/%d): %v", repo.FullName(), i+1, len(repos), err)
			break
		}

		rctx := clog.WithLogger(ctx, clog.FromContext(ctx).With("repo", repo.FullName()))
		report := o.Reconcile(rctx, repo)
		if report.Err != nil {
			clog.FromContext(rctx).Errorf("Repository failed at %s: %v", report.Stage, report.Err)
		}
		summary.Reports = append(summary.Reports, report)
	}
	return summary
}

// Reconcile runs one repository end to end. The clone, once acquired, is
// released before Reconcile returns on every path.
func (o *Orchestrator) Reconcile(ctx context.Context, repo githubreconciler.Repository) (report Report) {
	log := clog.FromContext(ctx)
	start := time.Now()
	report = Report{Repository: repo, Stage: StageDetect}
	defer func() {
		report.Duration = time.Since(start)
		o.metrics.observe(report)
	}()

	names, err := o.roots.RootFiles(ctx, repo)
	if err != nil {
		report.Err = fmt.Errorf("listing root files: %w", err)
		return report
	}
	specs := o.catalog.Detect(names)
	if len(specs) == 0 {
		log.Infof("No lockfile, skipping %s", repo.FullName())
		report.Stage = StageDone
		return report
	}
	report.Lockfiles = catalog.Filenames(specs)
	log.Infof("Detected lockfiles %v", report.Lockfiles)

	report.Stage = StageClone
	lease, err := o.workspaces.Acquire(ctx, repo)
	if err != nil {
		report.Err = err
		return report
	}
	defer func() {
		// Release must happen even when ctx was cancelled mid-run.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Errorf("Releasing workspace %s: %v", lease.Dir(), err)
			if report.Err == nil {
				report.Stage = StageRelease
				report.Err = err
			}
		}
	}()

	report.Stage = StageUpdate
	if err := o.updater.Run(ctx, lease.Dir(), specs); err != nil {
		report.Err = err
		return report
	}

	report.Stage = StageEvaluate
	outcome, err := o.evaluator.Evaluate(ctx, lease.Dir())
	if err != nil {
		report.Err = err
		return report
	}
	report.Outcome = outcome

	report.Stage = StagePublish
	pub, err := o.publisher.Publish(ctx, lease, outcome)
	if err != nil {
		report.Err = err
		return report
	}
	report.Publication = pub

	report.Stage = StageDone
	return report
}
