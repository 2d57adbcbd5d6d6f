/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main applies the repository settings policy to every matching
// repository.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/lockfilesync/reconcilers/githubreconciler"
	"chainguard.dev/lockfilesync/reconcilers/githubreconciler/settingsync"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	GitHubToken string   `env:"GITHUB_PAT,required"`
	Owners      []string `env:"REPOSITORY_OWNERS"`
	Qualifiers  string   `env:"REPOSITORY_QUALIFIERS,default=fork:true archived:false"`
	DryRun      bool     `env:"DRY_RUN,default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	clients, err := githubreconciler.NewClients(ctx, cfg.GitHubToken)
	if err != nil {
		clog.FatalContextf(ctx, "creating GitHub clients: %v", err)
	}
	owners, err := githubreconciler.OwnerQualifiers(ctx, clients.REST, cfg.Owners)
	if err != nil {
		clog.FatalContextf(ctx, "resolving repository owners: %v", err)
	}

	repos, err := githubreconciler.NewLister(clients.REST).Search(ctx, githubreconciler.SearchQuery(cfg.Qualifiers, owners))
	if err != nil {
		clog.FatalContextf(ctx, "listing repositories: %v", err)
	}
	clog.InfoContextf(ctx, "Found %d repositories", len(repos))

	syncer, err := settingsync.New(clients.REST, settingsync.WithDryRun(cfg.DryRun))
	if err != nil {
		clog.FatalContextf(ctx, "creating synchronizer: %v", err)
	}

	var names []string
	failed := 0
	for _, res := range syncer.Run(ctx, repos) {
		if res.Err != nil {
			failed++
			continue
		}
		names = append(names, res.Checks...)
	}

	report := settingsync.NewCheckReport(names)
	if err := report.WriteTable(os.Stdout); err != nil {
		clog.ErrorContextf(ctx, "writing check report: %v", err)
	}

	if err := ctx.Err(); err != nil {
		clog.FatalContextf(ctx, "interrupted: %v", err)
	}
	if failed > 0 {
		clog.FatalContextf(ctx, "%d of %d repositories failed", failed, len(repos))
	}
}
