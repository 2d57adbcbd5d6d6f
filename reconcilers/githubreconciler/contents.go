/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// RootLister lists the file names at the root of a repository's default
// branch with a single GraphQL request.
type RootLister struct {
	client *githubv4.Client
	retry  RetryConfig
}

// NewRootLister constructs a RootLister.
func NewRootLister(client *githubv4.Client) *RootLister {
	return &RootLister{
		client: client,
		retry:  DefaultRetryConfig(),
	}
}

// RootFiles returns the names of regular files (blobs) at the root of the
// default branch. Directories and submodules are omitted. An empty repository
// yields no names.
func (l *RootLister) RootFiles(ctx context.Context, repo Repository) ([]string, error) {
	var query struct {
		Repository struct {
			Object struct {
				Tree struct {
					Entries []struct {
						Name string
						Type string
					}
				} `graphql:"... on Tree"`
			} `graphql:"object(expression: $expression)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]any{
		"owner":      githubv4.String(repo.Owner),
		"name":       githubv4.String(repo.Name),
		"expression": githubv4.String("HEAD:"),
	}

	if _, err := retryRateLimited(ctx, l.retry, "list root files", func() (struct{}, error) {
		return struct{}{}, l.client.Query(ctx, &query, variables)
	}); err != nil {
		return nil, fmt.Errorf("listing root of %s: %w", repo.FullName(), err)
	}

	var names []string
	for _, entry := range query.Repository.Object.Tree.Entries {
		if entry.Type != "blob" {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}
