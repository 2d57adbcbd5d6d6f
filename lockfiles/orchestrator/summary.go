/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"io"
	"strings"
	"time"

	"chainguard.dev/lockfilesync/report"
	"github.com/olekukonko/tablewriter/tw"
)

var summaryColumns = []report.Column{
	{Header: "Repository"},
	{Header: "Lockfiles"},
	{Header: "Status"},
	{Header: "Changed"},
	{Header: "Duration", Align: tw.AlignRight},
	{Header: "Error"},
}

// WriteTable renders one row per processed repository.
func (s Summary) WriteTable(w io.Writer) error {
	rows := make([][]string, 0, len(s.Reports))
	for _, r := range s.Reports {
		errText := ""
		if r.Err != nil {
			errText = string(r.Stage) + ": " + r.Err.Error()
		}
		rows = append(rows, []string{
			r.Repository.FullName(),
			strings.Join(r.Lockfiles, " "),
			r.Status(),
			strings.Join(r.Outcome.Paths, " "),
			r.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}
	return report.Write(w, summaryColumns, rows)
}

// Counts tallies reports by Status.
func (s Summary) Counts() map[string]int {
	counts := make(map[string]int, len(s.Reports))
	for _, r := range s.Reports {
		counts[r.Status()]++
	}
	return counts
}
