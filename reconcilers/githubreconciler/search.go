/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// searchPageSize is the largest page GitHub's search API serves.
const searchPageSize = 100

// Lister finds repositories through the GitHub search API.
type Lister struct {
	client *github.Client
	retry  RetryConfig
}

// ListerOption configures a Lister.
type ListerOption func(*Lister)

// WithRetryConfig overrides DefaultRetryConfig.
func WithRetryConfig(cfg RetryConfig) ListerOption {
	return func(l *Lister) {
		l.retry = cfg
	}
}

// NewLister constructs a Lister around an authenticated client.
func NewLister(client *github.Client, opts ...ListerOption) *Lister {
	l := &Lister{
		client: client,
		retry:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Search returns every repository matching query, sorted by last update.
// Pages are requested until a short page arrives or the number of collected
// repositories reaches the total reported by GitHub.
func (l *Lister) Search(ctx context.Context, query string) ([]Repository, error) {
	if err := l.retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	log := clog.FromContext(ctx)

	var repos []Repository
	for page := 1; ; page++ {
		result, err := retryRateLimited(ctx, l.retry, "search repositories", func() (*github.RepositoriesSearchResult, error) {
			res, _, err := l.client.Search.Repositories(ctx, query, &github.SearchOptions{
				Sort: "updated",
				ListOptions: github.ListOptions{
					Page:    page,
					PerPage: searchPageSize,
				},
			})
			return res, err
		})
		if err != nil {
			return nil, fmt.Errorf("searching repositories (page %d): %w", page, err)
		}

		for _, repo := range result.Repositories {
			repos = append(repos, RepositoryFromGitHub(repo))
		}

		total := result.GetTotal()
		log.Debugf("Search page %d returned %d repositories (%d/%d)", page, len(result.Repositories), len(repos), total)
		if len(result.Repositories) < searchPageSize || len(repos) >= total {
			break
		}
	}

	return repos, nil
}
