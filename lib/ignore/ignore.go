// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ignore matches slash separated relative paths against glob
// pattern sets. The same matcher type backs the scanner's include filter,
// the delete exclusion list and the fast-check policy.
package ignore

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

type Pattern struct {
	pattern string
	match   []glob.Glob
	include bool
}

func (p Pattern) String() string {
	if !p.include {
		return "!" + p.pattern
	}
	return p.pattern
}

// A Matcher matches paths against an ordered pattern list. The first
// matching pattern decides; a `!` prefixed pattern excludes the path from
// the set. A path matches a pattern if the pattern matches the path itself
// or any parent of it.
type Matcher struct {
	patterns []Pattern
}

// New compiles the given pattern lines. Empty lines and lines starting
// with `//` are skipped.
func New(lines ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		p := Pattern{pattern: line, include: true}
		if strings.HasPrefix(line, "!") {
			line = strings.TrimPrefix(line, "!")
			p.include = false
		}
		line = strings.TrimPrefix(line, "/")

		base, err := glob.Compile(line, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p.pattern, err)
		}
		below, err := glob.Compile(line+"/**", '/')
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p.pattern, err)
		}
		p.match = []glob.Glob{base, below}

		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

// Match reports whether the given relative path is in the set described by
// the pattern list.
func (m *Matcher) Match(name string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	name = strings.TrimPrefix(name, "/")
	for _, p := range m.patterns {
		for _, g := range p.match {
			if g.Match(name) {
				return p.include
			}
		}
	}
	return false
}

// Patterns returns the source form of the compiled patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	res := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		res[i] = p.String()
	}
	return res
}
