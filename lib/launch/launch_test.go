// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package launch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/d4l3k/messagediff"
)

func TestFindJars(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"client.jar",
		"libs/b.jar",
		"libs/deep/a.JAR",
		"libs/readme.txt",
		"assets/texture.png",
	}
	for _, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	jars, err := FindJars(root)
	if err != nil {
		t.Fatal(err)
	}

	var rel []string
	for _, jar := range jars {
		r, _ := filepath.Rel(root, jar)
		rel = append(rel, filepath.ToSlash(r))
	}
	expected := []string{"client.jar", "libs/b.jar", "libs/deep/a.JAR"}
	if diff, equal := messagediff.PrettyDiff(expected, rel); !equal {
		t.Errorf("unexpected jar set:\n%s", diff)
	}
}

func TestClasspath(t *testing.T) {
	cp := Classpath([]string{"/a/x.jar", "/b/y.jar"})
	if !strings.Contains(cp, "x.jar") || !strings.Contains(cp, "y.jar") {
		t.Errorf("unexpected classpath %q", cp)
	}
	if !strings.Contains(cp, string(os.PathListSeparator)) {
		t.Error("classpath entries not separated")
	}
}

func TestProcessLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses sh")
	}

	table := NewTable()
	proc, err := table.Start(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo out line; echo err line >&2; exit 3"},
	})
	if err != nil {
		t.Fatal(err)
	}

	result := proc.Wait()
	if result.Code != 3 {
		t.Errorf("expected exit code 3, got %d", result.Code)
	}
	if proc.Running() {
		t.Error("finished process reported as running")
	}

	out := proc.Output()
	if !strings.Contains(out, "out line") || !strings.Contains(out, "err line") {
		t.Errorf("captured output incomplete: %q", out)
	}

	if got, ok := table.Get(proc.ID); !ok || got != proc {
		t.Error("finished process should remain in the table until removed")
	}
	table.Remove(proc.ID)
	if _, ok := table.Get(proc.ID); ok {
		t.Error("removed process still in the table")
	}
}

func TestKill(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses sleep")
	}

	table := NewTable()
	proc, err := table.Start(context.Background(), Command{
		Binary: "sleep",
		Args:   []string{"60"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := table.Kill(proc.ID); err != nil {
		t.Fatal(err)
	}
	result := proc.Wait()
	if result.Err == nil {
		t.Error("killed process should report an error result")
	}

	if err := table.Kill("bogus"); err != ErrNoSuchProcess {
		t.Errorf("expected ErrNoSuchProcess, got %v", err)
	}
}

func TestExtraArgsParsing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses sh")
	}

	table := NewTable()
	proc, err := table.Start(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", `echo "$0 $1"`},
		Extra:  `first "second arg"`,
	})
	if err != nil {
		t.Fatal(err)
	}
	proc.Wait()

	if out := proc.Output(); !strings.Contains(out, "first second arg") {
		t.Errorf("extra args not split correctly: %q", out)
	}

	if _, err := table.Start(context.Background(), Command{
		Binary: "sh",
		Extra:  `"unterminated`,
	}); err == nil {
		t.Error("expected error for malformed extra args")
	}
}
