/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"errors"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Clients bundles the REST and GraphQL clients authenticated with the same
// token.
type Clients struct {
	REST    *github.Client
	GraphQL *githubv4.Client
}

// NewClients builds REST and GraphQL clients authenticated with a personal
// access token.
func NewClients(ctx context.Context, token string) (*Clients, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return &Clients{
		REST:    github.NewClient(httpClient),
		GraphQL: githubv4.NewClient(httpClient),
	}, nil
}

// OwnerQualifiers turns owner logins into user: search qualifiers. When no
// owners are given, the authenticated user is used.
func OwnerQualifiers(ctx context.Context, gh *github.Client, owners []string) ([]string, error) {
	if len(owners) == 0 {
		user, _, err := gh.Users.Get(ctx, "")
		if err != nil {
			return nil, err
		}
		owners = []string{user.GetLogin()}
	}

	qualifiers := make([]string, 0, len(owners))
	for _, owner := range owners {
		owner = strings.TrimSpace(owner)
		if owner == "" {
			continue
		}
		if strings.Contains(owner, ":") {
			// Already a qualifier such as repo:owner/name.
			qualifiers = append(qualifiers, owner)
			continue
		}
		qualifiers = append(qualifiers, "user:"+owner)
	}
	if len(qualifiers) == 0 {
		return nil, errors.New("no repository owners configured")
	}
	return qualifiers, nil
}

// SearchQuery joins the static qualifiers and the owner qualifiers into one
// search query.
func SearchQuery(qualifiers string, owners []string) string {
	parts := strings.Fields(qualifiers)
	parts = append(parts, owners...)
	return strings.Join(parts, " ")
}
