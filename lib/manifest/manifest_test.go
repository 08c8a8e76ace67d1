// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package manifest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/d4l3k/messagediff"
)

func TestCheckRelPath(t *testing.T) {
	valid := []string{
		"a",
		"a/b",
		"a/b/c.jar",
		"some dir/with spaces",
		"..hidden",
		"trailing..",
	}
	invalid := []string{
		"",
		"/a",
		"a//b",
		"a/",
		".",
		"..",
		"../a",
		"a/../b",
		"a/..",
		"a\\b",
		"C:/windows",
		"c:relative",
	}

	for _, name := range valid {
		if err := CheckRelPath(name); err != nil {
			t.Errorf("CheckRelPath(%q) = %v, expected nil", name, err)
		}
	}
	for _, name := range invalid {
		if err := CheckRelPath(name); err == nil {
			t.Errorf("CheckRelPath(%q) = nil, expected error", name)
		}
	}
}

func TestConstructionRejectsTraversal(t *testing.T) {
	if _, err := NewFile("../../etc/passwd", 1, "00ff"); err == nil {
		t.Error("expected error for traversal path")
	}
	if _, err := NewDir("a/../b"); err == nil {
		t.Error("expected error for traversal path")
	}
	if _, err := NewFile("a", 10, ""); err == nil {
		t.Error("expected error for empty hash")
	}
	if _, err := NewFile("a", -1, "00ff"); err == nil {
		t.Error("expected error for negative size")
	}
}

func buildTree(t *testing.T) *Entry {
	t.Helper()
	root, _ := NewDir("")
	files := []struct {
		name string
		size int64
		hash string
	}{
		{"client.jar", 1024, "aa01"},
		{"libs/common.jar", 2048, "bb02"},
		{"libs/native/linux.so", 512, "cc03"},
		{"config/game.cfg", 64, "dd04"},
	}
	for _, f := range files {
		entry, err := NewFile(f.name, f.size, f.hash)
		if err != nil {
			t.Fatal(err)
		}
		if err := root.Insert(entry); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestInsertLookup(t *testing.T) {
	root := buildTree(t)

	e := root.Lookup("libs/native/linux.so")
	if e == nil {
		t.Fatal("lookup returned nil")
	}
	if e.Hash != "cc03" || e.Size != 512 {
		t.Errorf("unexpected entry %+v", e)
	}

	if dir := root.Lookup("libs/native"); dir == nil || !dir.IsDir() {
		t.Error("intermediate directory not created")
	}
	if root.Lookup("nope") != nil {
		t.Error("lookup of absent path should return nil")
	}
	if root.Lookup("client.jar/below") != nil {
		t.Error("lookup below a file should return nil")
	}

	if err := root.Validate(); err != nil {
		t.Error("built tree should validate:", err)
	}
}

func TestValidateRejectsInconsistencies(t *testing.T) {
	root, _ := NewDir("")
	file, _ := NewFile("a", 1, "00")
	if err := root.Insert(file); err != nil {
		t.Fatal(err)
	}

	// A child stored under a key that does not match its entry name.
	root.Children["b"] = &Entry{Name: "c", Type: TypeFile, Size: 1, Hash: "00"}
	if err := root.Validate(); err == nil {
		t.Error("expected error for mismatched child key")
	}
	delete(root.Children, "b")

	// A deserialized tree may claim anything; traversal names must fail.
	root.Children["evil"] = &Entry{Name: "../evil", Type: TypeFile, Size: 1, Hash: "00"}
	if err := root.Validate(); err == nil {
		t.Error("expected error for traversal name")
	}
	delete(root.Children, "evil")

	// A directory with a hash.
	dir, _ := NewDir("d")
	dir.Hash = "00"
	if err := root.Insert(dir); err != nil {
		t.Fatal(err)
	}
	if err := root.Validate(); err == nil {
		t.Error("expected error for directory with hash")
	}
}

func TestFlattenOrder(t *testing.T) {
	root := buildTree(t)

	var names []string
	for _, e := range root.Flatten() {
		names = append(names, e.Name)
	}
	expected := []string{
		"client.jar",
		"config",
		"config/game.cfg",
		"libs",
		"libs/common.jar",
		"libs/native",
		"libs/native/linux.so",
	}
	if diff, equal := messagediff.PrettyDiff(expected, names); !equal {
		t.Errorf("unexpected flatten order:\n%s", diff)
	}
}

func TestCanonicalDeterminism(t *testing.T) {
	m1 := New(buildTree(t), ScopeClient)
	m2 := &Manifest{Root: buildTree(t), GeneratedAt: m1.GeneratedAt, ContentScope: ScopeClient}

	bs1, err := m1.CanonicalBytes()
	if err != nil {
		t.Fatal(err)
	}
	bs2, err := m2.CanonicalBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bs1, bs2) {
		t.Errorf("equal manifests canonicalized differently:\n%s\n%s", bs1, bs2)
	}

	// Round-tripping through the wire format must re-canonicalize to the
	// same bytes, or signatures would break in transit.
	var parsed Manifest
	if err := json.Unmarshal(bs1, &parsed); err != nil {
		t.Fatal(err)
	}
	bs3, err := parsed.CanonicalBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bs1, bs3) {
		t.Errorf("canonical form not stable across parse:\n%s\n%s", bs1, bs3)
	}
}

func TestScopeParsing(t *testing.T) {
	for _, name := range []string{"client", "assets", "runtime"} {
		var s Scope
		if err := s.UnmarshalText([]byte(name)); err != nil {
			t.Errorf("scope %q: %v", name, err)
		}
	}
	var s Scope
	if err := s.UnmarshalText([]byte("stuff")); err == nil {
		t.Error("expected error for unknown scope")
	}
}
