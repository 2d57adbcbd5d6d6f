/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"github.com/google/go-github/v84/github"
)

// Repository identifies a repository the reconcilers operate on. Values are
// produced by a Lister and never mutated afterwards.
type Repository struct {
	Owner         string
	Name          string
	SSHURL        string
	DefaultBranch string
	Private       bool
	Archived      bool
	Fork          bool
}

// FullName returns owner/name.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repository) String() string {
	return r.FullName()
}

// RepositoryFromGitHub converts an API repository into a Repository.
func RepositoryFromGitHub(repo *github.Repository) Repository {
	return Repository{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		SSHURL:        repo.GetSSHURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		Archived:      repo.GetArchived(),
		Fork:          repo.GetFork(),
	}
}
