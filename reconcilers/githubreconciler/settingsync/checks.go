/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settingsync

import (
	"cmp"
	"io"
	"slices"
	"strings"

	"chainguard.dev/lockfilesync/report"
)

// dependabotAppID is excluded from required checks.
const dependabotAppID = 29110

// websiteStalker pushes to the default branch itself; a pull request rule
// would block it.
const websiteStalker = "website-stalker"

// WantedChecks are check names (lower case) that become required status
// checks when a repository runs them.
var WantedChecks = []string{
	"build",
	"check",
	"clippy",
	"denofmt-and-lint",
	"doc",
	"features",
	"lint",
	"node.js",
	"publish-dry-run",
	"release",
	"rustfmt",
	"test",
}

// Check is a check run identity on the default branch.
type Check struct {
	AppID int64
	Name  string
}

// IsWanted reports whether a check named name should be required. Names
// match a wanted check exactly or with a space separated suffix, such as
// "test (ubuntu-latest)". Beta and nightly variants never match.
func IsWanted(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "beta") || strings.Contains(lower, "nightly") {
		return false
	}
	for _, wanted := range WantedChecks {
		if lower == wanted || strings.HasPrefix(lower, wanted+" ") {
			return true
		}
	}
	return false
}

// normalizeChecks drops Dependabot, removes duplicates by app and name, and
// sorts by name.
func normalizeChecks(checks []Check) []Check {
	seen := make(map[Check]bool, len(checks))
	out := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.AppID == dependabotAppID || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b Check) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func relevantChecks(checks []Check) []Check {
	var out []Check
	for _, c := range checks {
		if IsWanted(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

func pushesToDefault(checks []Check) bool {
	return slices.ContainsFunc(checks, func(c Check) bool { return c.Name == websiteStalker })
}

// CheckReport classifies every check name seen across a batch.
type CheckReport struct {
	// UnusedWanted lists wanted checks no repository runs.
	UnusedWanted []string
	Wanted       []string
	Ignored      []string
}

// NewCheckReport builds a CheckReport from the check names of all
// repositories.
func NewCheckReport(names []string) CheckReport {
	all := slices.Clone(names)
	slices.Sort(all)
	all = slices.Compact(all)

	var r CheckReport
	for _, wanted := range WantedChecks {
		used := slices.ContainsFunc(all, func(name string) bool {
			return strings.Contains(strings.ToLower(name), wanted)
		})
		if !used {
			r.UnusedWanted = append(r.UnusedWanted, wanted)
		}
	}
	for _, name := range all {
		if IsWanted(name) {
			r.Wanted = append(r.Wanted, name)
		} else {
			r.Ignored = append(r.Ignored, name)
		}
	}
	return r
}

// WriteTable renders the report as one row per check name.
func (r CheckReport) WriteTable(w io.Writer) error {
	var rows [][]string
	for _, name := range r.UnusedWanted {
		rows = append(rows, []string{name, "unused wanted"})
	}
	for _, name := range r.Wanted {
		rows = append(rows, []string{name, "wanted"})
	}
	for _, name := range r.Ignored {
		rows = append(rows, []string{name, "ignored"})
	}
	return report.Write(w, report.Left("Check", "Classification"), rows)
}
