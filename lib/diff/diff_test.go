// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package diff

import (
	"testing"

	"github.com/d4l3k/messagediff"

	"github.com/alauncher/updater/lib/ignore"
	"github.com/alauncher/updater/lib/manifest"
)

func tree(t *testing.T, files map[string]string) *manifest.Entry {
	t.Helper()
	root, _ := manifest.NewDir("")
	for name, hash := range files {
		entry, err := manifest.NewFile(name, 10, hash)
		if err != nil {
			t.Fatal(err)
		}
		if err := root.Insert(entry); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func fetchNames(p *Plan) []string {
	var names []string
	for _, e := range p.Fetch {
		names = append(names, e.Name)
	}
	return names
}

func verifyNames(p *Plan) []string {
	var names []string
	for _, e := range p.Verify {
		names = append(names, e.Name)
	}
	return names
}

func TestComputeIdenticalTrees(t *testing.T) {
	files := map[string]string{"a": "01", "sub/b": "02"}
	plan := Compute(tree(t, files), tree(t, files), nil, nil)
	if !plan.Empty() {
		t.Errorf("expected empty plan, got fetch=%v verify=%v delete=%v",
			fetchNames(plan), verifyNames(plan), plan.Delete)
	}
}

func TestComputeEmptyLocal(t *testing.T) {
	remote := tree(t, map[string]string{"a": "01", "b": "02", "c": "03"})
	plan := Compute(nil, remote, nil, nil)

	if diff, equal := messagediff.PrettyDiff([]string{"a", "b", "c"}, fetchNames(plan)); !equal {
		t.Errorf("unexpected fetch set:\n%s", diff)
	}
	if len(plan.Delete) != 0 {
		t.Errorf("expected no deletions, got %v", plan.Delete)
	}
}

func TestComputeDropAndChange(t *testing.T) {
	local := tree(t, map[string]string{"a": "01", "b": "02", "c": "03"})
	remote := tree(t, map[string]string{"a": "01", "c": "33"})
	plan := Compute(local, remote, nil, nil)

	if diff, equal := messagediff.PrettyDiff([]string{"c"}, fetchNames(plan)); !equal {
		t.Errorf("unexpected fetch set:\n%s", diff)
	}
	if diff, equal := messagediff.PrettyDiff([]string{"b"}, plan.Delete); !equal {
		t.Errorf("unexpected delete set:\n%s", diff)
	}
}

func TestComputeMinimality(t *testing.T) {
	local := tree(t, map[string]string{"a": "01", "sub/b": "02", "sub/deep/c": "03"})
	remote := tree(t, map[string]string{"a": "01", "sub/b": "ff", "sub/deep/c": "03"})
	plan := Compute(local, remote, nil, nil)

	if diff, equal := messagediff.PrettyDiff([]string{"sub/b"}, fetchNames(plan)); !equal {
		t.Errorf("unexpected fetch set:\n%s", diff)
	}
	if len(plan.Verify) != 0 || len(plan.Delete) != 0 {
		t.Errorf("expected only one fetch, got verify=%v delete=%v", verifyNames(plan), plan.Delete)
	}
}

func TestComputeVerifySet(t *testing.T) {
	files := map[string]string{"client.jar": "01", "assets/a.png": "02"}
	verify, err := ignore.New("*.jar")
	if err != nil {
		t.Fatal(err)
	}
	plan := Compute(tree(t, files), tree(t, files), verify, nil)

	if diff, equal := messagediff.PrettyDiff([]string{"client.jar"}, verifyNames(plan)); !equal {
		t.Errorf("unexpected verify set:\n%s", diff)
	}
	if len(plan.Fetch) != 0 {
		t.Errorf("expected no fetches, got %v", fetchNames(plan))
	}
}

func TestComputeProtectedPaths(t *testing.T) {
	local := tree(t, map[string]string{
		"a":                "01",
		"config/user.cfg":  "02",
		"config/other.cfg": "03",
		"stale/junk.bin":   "04",
	})
	remote := tree(t, map[string]string{"a": "01"})
	protect, err := ignore.New("config/user.cfg")
	if err != nil {
		t.Fatal(err)
	}
	plan := Compute(local, remote, nil, protect)

	expected := []string{"config/other.cfg", "stale/junk.bin", "stale"}
	if diff, equal := messagediff.PrettyDiff(expected, plan.Delete); !equal {
		t.Errorf("unexpected delete set:\n%s", diff)
	}
	for _, name := range plan.Delete {
		if name == "config" || name == "config/user.cfg" {
			t.Error("protected path or its parent scheduled for deletion:", name)
		}
	}
}

func TestComputeDeleteOrder(t *testing.T) {
	local := tree(t, map[string]string{"d/e/f": "01", "d/g": "02"})
	plan := Compute(local, tree(t, nil), nil, nil)

	// Children come before their parent directories so removal works
	// bottom up.
	pos := make(map[string]int)
	for i, name := range plan.Delete {
		pos[name] = i
	}
	if !(pos["d/e/f"] < pos["d/e"] && pos["d/e"] < pos["d"] && pos["d/g"] < pos["d"]) {
		t.Errorf("bad delete order: %v", plan.Delete)
	}
}

func TestComputeTypeConflict(t *testing.T) {
	// Locally a file, remotely a directory with content.
	local := tree(t, map[string]string{"x": "01"})
	remote := tree(t, map[string]string{"x/inner": "02"})
	plan := Compute(local, remote, nil, nil)

	if diff, equal := messagediff.PrettyDiff([]string{"x/inner"}, fetchNames(plan)); !equal {
		t.Errorf("unexpected fetch set:\n%s", diff)
	}
	if diff, equal := messagediff.PrettyDiff([]string{"x"}, plan.Delete); !equal {
		t.Errorf("unexpected delete set:\n%s", diff)
	}
}
