/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settingsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/sync/errgroup"
)

// Synchronizer applies the settings policy to repositories.
type Synchronizer struct {
	client *github.Client
	dryRun bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDryRun logs mutating requests instead of sending them.
func WithDryRun(dryRun bool) Option {
	return func(s *Synchronizer) {
		s.dryRun = dryRun
	}
}

// New constructs a Synchronizer.
func New(client *github.Client, opts ...Option) (*Synchronizer, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	s := &Synchronizer{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result is the outcome for one repository.
type Result struct {
	Repository githubreconciler.Repository
	// Checks are the check names seen on the default branch tip.
	Checks []string
	Err    error
}

// Run synchronizes repos one at a time. A failing repository is recorded and
// does not stop the batch.
func (s *Synchronizer) Run(ctx context.Context, repos []githubreconciler.Repository) []Result {
	results := make([]Result, 0, len(repos))
	for _, repo := range repos {
		if ctx.Err() != nil {
			break
		}
		rctx := clog.WithLogger(ctx, clog.FromContext(ctx).With("repo", repo.FullName()))
		checks, err := s.Sync(rctx, repo)
		if err != nil {
			clog.FromContext(rctx).Errorf("Synchronizing settings: %v", err)
		}
		results = append(results, Result{Repository: repo, Checks: checks, Err: err})
	}
	return results
}

// Sync applies the policy to repo and returns the names of the check runs on
// its default branch.
func (s *Synchronizer) Sync(ctx context.Context, repo githubreconciler.Repository) ([]string, error) {
	log := clog.FromContext(ctx)
	log.Infof("Synchronizing settings of %s", repo.FullName())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.removeBranchProtections(gctx, repo) })
	g.Go(func() error { return s.subscribe(gctx, repo) })
	g.Go(func() error { return s.editRepository(gctx, repo) })
	g.Go(func() error {
		return s.mutate(gctx, http.MethodPut, actionsPath(repo, "permissions"), actionsPermissions{
			Enabled:        true,
			AllowedActions: "all",
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.mutate(ctx, http.MethodPut, actionsPath(repo, "permissions/workflow"), workflowPermissions{
		DefaultWorkflowPermissions:   "read",
		CanApprovePullRequestReviews: false,
	}); err != nil {
		return nil, fmt.Errorf("setting workflow permissions: %w", err)
	}

	if repo.Private {
		err := s.mutate(ctx, http.MethodPut, actionsPath(repo, "permissions/access"), accessLevel{AccessLevel: "none"})
		if err != nil {
			return nil, fmt.Errorf("setting actions access level: %w", err)
		}
	} else {
		err := s.mutate(ctx, http.MethodPut, actionsPath(repo, "permissions/fork-pr-contributor-approval"), forkApproval{
			ApprovalPolicy: "first_time_contributors_new_to_github",
		})
		if err != nil {
			return nil, fmt.Errorf("setting fork pull request approval: %w", err)
		}
	}

	checks, total, err := s.defaultBranchChecks(ctx, repo)
	if err != nil {
		return nil, err
	}
	noChecks := total == 0
	if noChecks {
		log.Info("Default branch tip has no checks, pushed by a workflow?")
	}

	if !repo.Private {
		if err := s.updateRulesets(ctx, repo, checks, noChecks); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *Synchronizer) removeBranchProtections(ctx context.Context, repo githubreconciler.Repository) error {
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var protected []string
	for {
		branches, resp, err := s.client.Repositories.ListBranches(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("listing branches: %w", err)
		}
		for _, b := range branches {
			if b.GetProtected() {
				protected = append(protected, b.GetName())
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	for _, branch := range protected {
		if s.dryRun {
			clog.FromContext(ctx).Infof("[dry-run] would remove protection of branch %s", branch)
			continue
		}
		if _, err := s.client.Repositories.RemoveBranchProtection(ctx, repo.Owner, repo.Name, branch); err != nil {
			return fmt.Errorf("removing protection of branch %s: %w", branch, err)
		}
	}
	return nil
}

func (s *Synchronizer) subscribe(ctx context.Context, repo githubreconciler.Repository) error {
	if s.dryRun {
		clog.FromContext(ctx).Info("[dry-run] would subscribe to repository")
		return nil
	}
	_, _, err := s.client.Activity.SetRepositorySubscription(ctx, repo.Owner, repo.Name, &github.Subscription{
		Subscribed: github.Ptr(true),
	})
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	return nil
}

// RepositorySettings returns the repository fields the policy owns.
func RepositorySettings(repo githubreconciler.Repository) *github.Repository {
	security := &github.SecurityAndAnalysis{
		DependabotSecurityUpdates:    &github.DependabotSecurityUpdates{Status: github.Ptr("disabled")},
		SecretScanningPushProtection: &github.SecretScanningPushProtection{Status: github.Ptr("enabled")},
	}
	if !repo.Private {
		security.SecretScanning = &github.SecretScanning{Status: github.Ptr("enabled")}
	}

	return &github.Repository{
		AllowAutoMerge:           github.Ptr(true),
		AllowMergeCommit:         github.Ptr(false),
		AllowRebaseMerge:         github.Ptr(false),
		AllowSquashMerge:         github.Ptr(true),
		AllowUpdateBranch:        github.Ptr(true),
		DeleteBranchOnMerge:      github.Ptr(true),
		HasWiki:                  github.Ptr(false),
		WebCommitSignoffRequired: github.Ptr(true),
		SecurityAndAnalysis:      security,
	}
}

func (s *Synchronizer) editRepository(ctx context.Context, repo githubreconciler.Repository) error {
	if s.dryRun {
		clog.FromContext(ctx).Info("[dry-run] would update repository settings")
		return nil
	}
	if _, _, err := s.client.Repositories.Edit(ctx, repo.Owner, repo.Name, RepositorySettings(repo)); err != nil {
		return fmt.Errorf("updating repository settings: %w", err)
	}
	return nil
}

// defaultBranchChecks returns the normalized check runs of the default branch
// tip together with the total GitHub reports.
func (s *Synchronizer) defaultBranchChecks(ctx context.Context, repo githubreconciler.Repository) ([]Check, int, error) {
	ref := repo.DefaultBranch
	if ref == "" {
		ref = "HEAD"
	}
	res, resp, err := s.client.Checks.ListCheckRunsForRef(ctx, repo.Owner, repo.Name, ref, &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing check runs of %s: %w", ref, err)
	}
	if resp != nil {
		clog.FromContext(ctx).Debugf("Rate limit remaining: %d", resp.Rate.Remaining)
	}

	checks := make([]Check, 0, len(res.CheckRuns))
	for _, run := range res.CheckRuns {
		checks = append(checks, Check{AppID: run.GetApp().GetID(), Name: run.GetName()})
	}
	return normalizeChecks(checks), res.GetTotal(), nil
}

type actionsPermissions struct {
	Enabled        bool   `json:"enabled"`
	AllowedActions string `json:"allowed_actions"`
}

type workflowPermissions struct {
	DefaultWorkflowPermissions   string `json:"default_workflow_permissions"`
	CanApprovePullRequestReviews bool   `json:"can_approve_pull_request_reviews"`
}

type accessLevel struct {
	AccessLevel string `json:"access_level"`
}

type forkApproval struct {
	ApprovalPolicy string `json:"approval_policy"`
}

func actionsPath(repo githubreconciler.Repository, suffix string) string {
	return fmt.Sprintf("repos/%s/%s/actions/%s", repo.Owner, repo.Name, suffix)
}

// mutate sends a write request, or only logs it in dry-run mode.
func (s *Synchronizer) mutate(ctx context.Context, method, path string, body any) error {
	if s.dryRun {
		clog.FromContext(ctx).Infof("[dry-run] would %s %s", method, path)
		return nil
	}
	return s.request(ctx, method, path, body, nil)
}

func (s *Synchronizer) request(ctx context.Context, method, path string, body, v any) error {
	req, err := s.client.NewRequest(method, path, body)
	if err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, req, v); err != nil {
		return err
	}
	return nil
}
