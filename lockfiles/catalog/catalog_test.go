/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetect(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		names []string
		want  []string
	}{{
		name:  "nothing recognized",
		names: []string{"README.md", "go.mod", "go.sum"},
	}, {
		name:  "npm only",
		names: []string{"package.json", "package-lock.json"},
		want:  []string{"package-lock.json"},
	}, {
		name:  "catalog order wins over listing order",
		names: []string{"deno.lock", "README.md", "Cargo.lock"},
		want:  []string{"Cargo.lock", "deno.lock"},
	}, {
		name:  "all three",
		names: []string{"package-lock.json", "deno.lock", "Cargo.lock"},
		want:  []string{"Cargo.lock", "deno.lock", "package-lock.json"},
	}, {
		name:  "case sensitive",
		names: []string{"cargo.lock", "Package-Lock.json"},
	}, {
		name: "empty listing",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filenames(c.Detect(tt.names))
			if len(got) == 0 {
				got = nil
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Detect mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultEntries(t *testing.T) {
	want := map[string]string{
		"Cargo.lock":        "cargo",
		"deno.lock":         "deno",
		"package-lock.json": "npm",
	}
	specs := Default().Specs()
	if len(specs) != len(want) {
		t.Fatalf("len(Specs) = %d, want %d", len(specs), len(want))
	}
	for _, s := range specs {
		if want[s.Filename] != s.Ecosystem {
			t.Errorf("%s ecosystem = %q, want %q", s.Filename, s.Ecosystem, want[s.Filename])
		}
		if s.Command == "" {
			t.Errorf("%s has empty command", s.Filename)
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
	}{
		{name: "empty filename", specs: []Spec{{Command: "true"}}},
		{name: "nested path", specs: []Spec{{Filename: "web/package-lock.json", Command: "true"}}},
		{name: "empty command", specs: []Spec{{Filename: "x.lock", Command: "  "}}},
		{name: "duplicate", specs: []Spec{{Filename: "x.lock", Command: "a"}, {Filename: "x.lock", Command: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.specs...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSpecsIsACopy(t *testing.T) {
	c := Default()
	specs := c.Specs()
	specs[0].Command = "tampered"

	if c.Specs()[0].Command == "tampered" {
		t.Error("mutating Specs() result changed the catalog")
	}
}

func TestLoad(t *testing.T) {
	const doc = `
- filename: poetry.lock
  ecosystem: poetry
  command: poetry lock
- filename: Cargo.lock
  ecosystem: cargo
  command: cargo update
`
	c, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []Spec{
		{Filename: "poetry.lock", Ecosystem: "poetry", Command: "poetry lock"},
		{Filename: "Cargo.lock", Ecosystem: "cargo", Command: "cargo update"},
	}
	if diff := cmp.Diff(want, c.Specs()); diff != "" {
		t.Errorf("Specs (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "empty list", doc: "[]"},
		{name: "unknown key", doc: "- filename: a.lock\n  command: x\n  shell: zsh\n"},
		{name: "not a list", doc: "filename: a.lock\n"},
		{name: "invalid entry", doc: "- filename: a.lock\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("- filename: go.sum\n  ecosystem: go\n  command: go mod tidy\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := Filenames(c.Detect([]string{"go.mod", "go.sum"})); !cmp.Equal(got, []string{"go.sum"}) {
		t.Errorf("Detect = %v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
