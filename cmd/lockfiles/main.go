/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main refreshes the lock files of every matching repository and
// publishes the result to the lockfiles branch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/lockfilesync/lockfiles/catalog"
	"chainguard.dev/lockfilesync/lockfiles/changes"
	"chainguard.dev/lockfilesync/lockfiles/orchestrator"
	"chainguard.dev/lockfilesync/lockfiles/publisher"
	"chainguard.dev/lockfilesync/lockfiles/updater"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/clonemanager"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/gitexec"
	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	// GitHubToken authenticates the API calls. Git itself uses the ambient
	// SSH credentials.
	GitHubToken string `env:"GITHUB_PAT,required"`

	Owners     []string `env:"REPOSITORY_OWNERS"`
	Qualifiers string   `env:"REPOSITORY_QUALIFIERS,default=fork:true archived:false"`

	// CatalogFile replaces the built-in lock file catalog with a YAML file.
	CatalogFile string `env:"CATALOG_FILE"`

	GitIdentity    string        `env:"GIT_IDENTITY"`
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT,default=0s"`
	PushgatewayURL string        `env:"PUSHGATEWAY_URL"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	err := envconfig.Process(ctx, &cfg)
	if err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.LoadFile(cfg.CatalogFile); err != nil {
			clog.FatalContextf(ctx, "loading catalog: %v", err)
		}
	}

	clients, err := githubreconciler.NewClients(ctx, cfg.GitHubToken)
	if err != nil {
		clog.FatalContextf(ctx, "creating GitHub clients: %v", err)
	}

	owners, err := githubreconciler.OwnerQualifiers(ctx, clients.REST, cfg.Owners)
	if err != nil {
		clog.FatalContextf(ctx, "resolving repository owners: %v", err)
	}
	query := githubreconciler.SearchQuery(cfg.Qualifiers, owners)
	clog.InfoContextf(ctx, "Searching repositories: %s", query)

	repos, err := githubreconciler.NewLister(clients.REST).Search(ctx, query)
	if err != nil {
		clog.FatalContextf(ctx, "listing repositories: %v", err)
	}
	clog.InfoContextf(ctx, "Found %d repositories", len(repos))

	var gitOpts []gitexec.Option
	if cfg.GitIdentity != "" {
		gitOpts = append(gitOpts, gitexec.WithIdentity(cfg.GitIdentity))
	}
	git := gitexec.New(gitOpts...)

	workspaces, err := clonemanager.New(git)
	if err != nil {
		clog.FatalContextf(ctx, "creating clone manager: %v", err)
	}
	up, err := updater.New(updater.WithTimeout(cfg.CommandTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "creating updater: %v", err)
	}
	pub, err := publisher.New(git)
	if err != nil {
		clog.FatalContextf(ctx, "creating publisher: %v", err)
	}

	registry := prometheus.NewRegistry()
	orch, err := orchestrator.New(
		cat,
		githubreconciler.NewRootLister(clients.GraphQL),
		workspaces,
		up,
		changes.NewEvaluator(git),
		pub,
		orchestrator.WithMetrics(orchestrator.NewMetrics(registry)),
	)
	if err != nil {
		clog.FatalContextf(ctx, "creating orchestrator: %v", err)
	}

	summary := orch.Run(ctx, repos)

	if err := summary.WriteTable(os.Stdout); err != nil {
		clog.ErrorContextf(ctx, "writing summary: %v", err)
	}
	clog.InfoContextf(ctx, "Processed %d of %d repositories: %v", len(summary.Reports), len(repos), summary.Counts())

	if cfg.PushgatewayURL != "" {
		if err := push.New(cfg.PushgatewayURL, "lockfiles").Gatherer(registry).PushContext(ctx); err != nil {
			clog.ErrorContextf(ctx, "pushing metrics: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		clog.FatalContextf(ctx, "interrupted: %v", err)
	}
	if err := summary.Err(); err != nil {
		clog.FatalContextf(ctx, "%d repositories failed:\n%v", len(summary.Failed()), err)
	}
}
