/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package catalog maps recognized lock file names to the command that
// regenerates them. A Catalog is an immutable value built once at startup and
// handed to whoever needs it.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec describes one recognized lock file.
type Spec struct {
	// Filename is matched against names at the repository root.
	Filename string `yaml:"filename"`
	// Ecosystem is a short label used in logs and metrics.
	Ecosystem string `yaml:"ecosystem"`
	// Command is a shell command run from the repository root that
	// regenerates Filename. Re-running it without upstream changes must not
	// change the working tree.
	Command string `yaml:"command"`
}

// Catalog is an ordered set of Specs.
type Catalog struct {
	specs []Spec
}

// New builds a Catalog. Specs keep the given order, which is also the order
// refresh commands run in.
func New(specs ...Spec) (*Catalog, error) {
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		switch {
		case s.Filename == "":
			return nil, errors.New("lock file name cannot be empty")
		case strings.ContainsRune(s.Filename, '/'):
			return nil, fmt.Errorf("lock file %q must be a root file name", s.Filename)
		case strings.TrimSpace(s.Command) == "":
			return nil, fmt.Errorf("lock file %q has no command", s.Filename)
		}
		if _, ok := seen[s.Filename]; ok {
			return nil, fmt.Errorf("duplicate lock file %q", s.Filename)
		}
		seen[s.Filename] = struct{}{}
	}
	return &Catalog{specs: append([]Spec(nil), specs...)}, nil
}

// Default returns the built-in catalog for cargo, deno and npm.
func Default() *Catalog {
	c, err := New(
		Spec{
			Filename:  "Cargo.lock",
			Ecosystem: "cargo",
			Command:   "CARGO_RESOLVER_INCOMPATIBLE_RUST_VERSIONS=fallback cargo update --quiet",
		},
		Spec{
			Filename:  "deno.lock",
			Ecosystem: "deno",
			Command:   "rm -f deno.lock && fd --extension ts --exec-batch deno cache --reload",
		},
		Spec{
			Filename:  "package-lock.json",
			Ecosystem: "npm",
			Command:   "rm -f package-lock.json && npm install --no-audit --no-fund --no-update-notifier --package-lock-only",
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from YAML: a list of entries with filename, ecosystem
// and command keys. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var specs []Spec
	if err := dec.Decode(&specs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(specs) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return New(specs...)
}

// LoadFile reads a catalog with Load from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Specs returns a copy of every entry in catalog order.
func (c *Catalog) Specs() []Spec {
	return append([]Spec(nil), c.specs...)
}

// Detect returns the entries whose Filename appears in names, in catalog
// order. It performs no I/O.
func (c *Catalog) Detect(names []string) []Spec {
	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}

	var found []Spec
	for _, s := range c.specs {
		if _, ok := present[s.Filename]; ok {
			found = append(found, s)
		}
	}
	return found
}

// Filenames returns the Filename of each spec.
func Filenames(specs []Spec) []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Filename)
	}
	return names
}
