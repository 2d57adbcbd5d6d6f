/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settingsync

import (
	"context"
	"fmt"
	"net/http"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

const (
	rulesetTagsExceptVersions = "Tags except versions"
	rulesetVersionTags        = "Version Tags"
	rulesetDefaultBranch      = "Default Branch Protection"

	versionTagPattern = "refs/tags/v*.*.*"

	// repositoryAdminRole is the built-in repository role id of admins.
	repositoryAdminRole = 5
)

// rulesetSummary is an entry of the ruleset listing.
type rulesetSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Target     string `json:"target"`
	SourceType string `json:"source_type"`
}

// Ruleset is the request body of a ruleset create or update.
type Ruleset struct {
	Name         string        `json:"name,omitempty"`
	Target       string        `json:"target,omitempty"`
	Enforcement  string        `json:"enforcement"`
	Conditions   *Conditions   `json:"conditions,omitempty"`
	BypassActors []BypassActor `json:"bypass_actors,omitempty"`
	Rules        []Rule        `json:"rules,omitempty"`
}

type Conditions struct {
	RefName RefNameCondition `json:"ref_name"`
}

type RefNameCondition struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

type BypassActor struct {
	ActorID    int64  `json:"actor_id"`
	ActorType  string `json:"actor_type"`
	BypassMode string `json:"bypass_mode"`
}

type Rule struct {
	Type       string `json:"type"`
	Parameters any    `json:"parameters,omitempty"`
}

type StatusCheck struct {
	Context       string `json:"context"`
	IntegrationID int64  `json:"integration_id,omitempty"`
}

type statusChecksParameters struct {
	Strict bool          `json:"strict_required_status_checks_policy"`
	Checks []StatusCheck `json:"required_status_checks"`
}

type pullRequestParameters struct {
	DismissStaleReviewsOnPush      bool `json:"dismiss_stale_reviews_on_push"`
	RequireCodeOwnerReview         bool `json:"require_code_owner_review"`
	RequireLastPushApproval        bool `json:"require_last_push_approval"`
	RequiredApprovingReviewCount   int  `json:"required_approving_review_count"`
	RequiredReviewThreadResolution bool `json:"required_review_thread_resolution"`
}

var adminBypass = []BypassActor{{
	ActorID:    repositoryAdminRole,
	ActorType:  "RepositoryRole",
	BypassMode: "always",
}}

func immutableTagRules() []Rule {
	return []Rule{
		{Type: "creation"},
		{Type: "deletion"},
		{Type: "non_fast_forward"},
		{Type: "required_linear_history"},
		{Type: "required_signatures"},
		{Type: "update"},
	}
}

// TagsExceptVersions locks every tag that is not a version tag.
func TagsExceptVersions() Ruleset {
	return Ruleset{
		Enforcement: "active",
		Conditions: &Conditions{RefName: RefNameCondition{
			Include: []string{"~ALL"},
			Exclude: []string{versionTagPattern},
		}},
		Rules: immutableTagRules(),
	}
}

// VersionTags locks version tags for everyone but repository admins.
func VersionTags() Ruleset {
	return Ruleset{
		Enforcement: "active",
		Conditions: &Conditions{RefName: RefNameCondition{
			Include: []string{versionTagPattern},
			Exclude: []string{},
		}},
		BypassActors: adminBypass,
		Rules:        immutableTagRules(),
	}
}

// DefaultBranchProtection requires the relevant checks on the default branch.
// Pull requests are required unless the tip had no checks at all or a
// workflow pushes to the default branch. Without relevant checks the last
// push needs an approval.
func DefaultBranchProtection(relevant []Check, noChecks, pushesToDefault bool) Ruleset {
	statusChecks := make([]StatusCheck, 0, len(relevant))
	for _, c := range relevant {
		statusChecks = append(statusChecks, StatusCheck{Context: c.Name, IntegrationID: c.AppID})
	}

	rules := []Rule{
		{Type: "creation"},
		{Type: "non_fast_forward"},
		{Type: "deletion"},
		{Type: "required_linear_history"},
		{Type: "required_status_checks", Parameters: statusChecksParameters{
			Strict: true,
			Checks: statusChecks,
		}},
	}
	if !noChecks && !pushesToDefault {
		rules = append(rules, Rule{Type: "pull_request", Parameters: pullRequestParameters{
			DismissStaleReviewsOnPush:      true,
			RequireCodeOwnerReview:         true,
			RequireLastPushApproval:        len(relevant) == 0,
			RequiredApprovingReviewCount:   0,
			RequiredReviewThreadResolution: true,
		}})
	}

	return Ruleset{
		Enforcement: "active",
		Conditions: &Conditions{RefName: RefNameCondition{
			Include: []string{"~DEFAULT_BRANCH"},
			Exclude: []string{},
		}},
		BypassActors: adminBypass,
		Rules:        rules,
	}
}

// updateRulesets maintains the three rulesets of a public repository. A
// failure on the default branch ruleset is logged and does not fail the
// repository.
func (s *Synchronizer) updateRulesets(ctx context.Context, repo githubreconciler.Repository, checks []Check, noChecks bool) error {
	log := clog.FromContext(ctx)

	var existing []rulesetSummary
	if err := s.request(ctx, http.MethodGet, rulesetsPath(repo), nil, &existing); err != nil {
		return fmt.Errorf("listing rulesets: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.applyRuleset(gctx, repo, existing, "tag", rulesetTagsExceptVersions, TagsExceptVersions())
	})
	g.Go(func() error {
		return s.applyRuleset(gctx, repo, existing, "tag", rulesetVersionTags, VersionTags())
	})
	if err := g.Wait(); err != nil {
		return err
	}

	protection := DefaultBranchProtection(relevantChecks(checks), noChecks, pushesToDefault(checks))
	if err := s.applyRuleset(ctx, repo, existing, "branch", rulesetDefaultBranch, protection); err != nil {
		log.Errorf("Updating default branch ruleset: %v", err)
	}
	return nil
}

// applyRuleset creates the named ruleset disabled when it is missing and
// then replaces its configuration.
func (s *Synchronizer) applyRuleset(ctx context.Context, repo githubreconciler.Repository, existing []rulesetSummary, target, name string, rs Ruleset) error {
	var id int64
	for _, e := range existing {
		if e.SourceType == "Repository" && e.Target == target && e.Name == name {
			id = e.ID
			break
		}
	}

	if id == 0 {
		if s.dryRun {
			clog.FromContext(ctx).Infof("[dry-run] would create ruleset %q", name)
			return nil
		}
		var created rulesetSummary
		err := s.request(ctx, http.MethodPost, rulesetsPath(repo), Ruleset{
			Name:        name,
			Target:      target,
			Enforcement: "disabled",
		}, &created)
		if err != nil {
			return fmt.Errorf("creating ruleset %q: %w", name, err)
		}
		id = created.ID
	}

	path := fmt.Sprintf("%s/%d", rulesetsPath(repo), id)
	if err := s.mutate(ctx, http.MethodPut, path, rs); err != nil {
		return fmt.Errorf("updating ruleset %q: %w", name, err)
	}
	return nil
}

func rulesetsPath(repo githubreconciler.Repository) string {
	return fmt.Sprintf("repos/%s/%s/rulesets", repo.Owner, repo.Name)
}
