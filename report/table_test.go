/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"strings"
	"testing"

	"github.com/olekukonko/tablewriter/tw"
)

func TestWrite(t *testing.T) {
	var sb strings.Builder
	err := Write(&sb, []Column{{Header: "Repository"}, {Header: "Duration", Align: tw.AlignRight}}, [][]string{
		{"octo/one", "1.2s"},
		{"octo/two", "350ms"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := sb.String()
	for _, want := range []string{"Repository", "Duration", "octo/one", "1.2s", "octo/two", "350ms", "|"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected a header separator:\n%s", out)
	}
}

func TestWriteFlattensCells(t *testing.T) {
	var sb strings.Builder
	err := Write(&sb, Left("Error"), [][]string{
		{"push failed:\n  ! [rejected] a|b"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), `push failed: ! [rejected] a\|b`) {
		t.Errorf("cell not flattened and escaped:\n%s", sb.String())
	}
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, Left("A", "B"), [][]string{{"only one"}}); err == nil {
		t.Error("expected an error for a short row")
	}
}

func TestWriteEmpty(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, Left("Check"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), "Check") {
		t.Errorf("expected header in output:\n%s", sb.String())
	}
}
