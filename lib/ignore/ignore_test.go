// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package ignore

import "testing"

func TestMatch(t *testing.T) {
	m, err := New(
		"libs",
		"*.jar",
		"assets/*.png",
	)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		match bool
	}{
		{"libs", true},
		{"libs/common.so", true},
		{"libs/deep/nested.so", true},
		{"client.jar", true},
		{"assets/a.png", true},
		{"assets/a.ogg", false},
		{"other/file.txt", false},
		{"libsx", false},
	}
	for _, tc := range cases {
		if m.Match(tc.name) != tc.match {
			t.Errorf("Match(%q) = %v, expected %v", tc.name, !tc.match, tc.match)
		}
	}
}

func TestNegation(t *testing.T) {
	m, err := New(
		"!config/keep.cfg",
		"config",
	)
	if err != nil {
		t.Fatal(err)
	}

	if m.Match("config/keep.cfg") {
		t.Error("negated pattern should exclude the path")
	}
	if !m.Match("config/other.cfg") {
		t.Error("sibling should still match")
	}
}

func TestFirstMatchWins(t *testing.T) {
	m, err := New(
		"sub/special.bin",
		"!sub",
	)
	if err != nil {
		t.Fatal(err)
	}

	if !m.Match("sub/special.bin") {
		t.Error("earlier pattern should win")
	}
	if m.Match("sub/other.bin") {
		t.Error("later negation should apply to the rest")
	}
}

func TestNilAndEmptyMatcher(t *testing.T) {
	var m *Matcher
	if m.Match("anything") {
		t.Error("nil matcher should match nothing")
	}

	m, err := New("", "// comment")
	if err != nil {
		t.Fatal(err)
	}
	if m.Match("anything") {
		t.Error("empty matcher should match nothing")
	}
}

func TestBadPattern(t *testing.T) {
	if _, err := New("a[unclosed"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}
