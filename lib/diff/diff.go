// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package diff computes the set of downloads, integrity checks and
// deletions needed to bring a local tree in line with a remote manifest.
package diff

import (
	"github.com/alauncher/updater/lib/ignore"
	"github.com/alauncher/updater/lib/manifest"
)

// A Plan is the pure result of comparing a local tree snapshot against a
// verified remote manifest. Fetch and Verify hold file entries from the
// remote tree; Delete holds local relative paths, children ordered before
// their parent directories.
type Plan struct {
	Fetch  []*manifest.Entry
	Verify []*manifest.Entry
	Delete []string
}

// Empty reports whether the plan requires no work at all.
func (p *Plan) Empty() bool {
	return len(p.Fetch) == 0 && len(p.Verify) == 0 && len(p.Delete) == 0
}

// FetchBytes returns the total content size of the files to fetch.
func (p *Plan) FetchBytes() int64 {
	var total int64
	for _, f := range p.Fetch {
		total += f.Size
	}
	return total
}

// Compute walks the local and remote trees in lock step and returns the
// resulting plan. Files matching the verify patterns get an integrity
// re-check even when hashes agree; local paths matching the protect
// patterns are never scheduled for deletion. Both matchers may be nil.
//
// Compute performs no I/O. Either tree may be nil, standing in for an
// empty directory.
func Compute(local, remote *manifest.Entry, verify, protect *ignore.Matcher) *Plan {
	c := comparer{verify: verify, protect: protect}
	c.dirs(local, remote)
	l.Debugf("plan: %d fetch, %d verify, %d delete", len(c.plan.Fetch), len(c.plan.Verify), len(c.plan.Delete))
	return &c.plan
}

type comparer struct {
	verify  *ignore.Matcher
	protect *ignore.Matcher
	plan    Plan
}

// dirs compares two directory entries level by level. Children are visited
// in sorted name order so plans are deterministic for identical inputs.
func (c *comparer) dirs(local, remote *manifest.Entry) {
	for _, rchild := range sortedChildren(remote) {
		var lchild *manifest.Entry
		if local != nil {
			lchild = local.Children[baseName(rchild)]
		}
		c.entry(lchild, rchild)
	}

	for _, lchild := range sortedChildren(local) {
		if remote == nil || remote.Children[baseName(lchild)] == nil {
			c.deleteTree(lchild)
		}
	}
}

// entry handles one remote entry and its local counterpart, which may be
// nil or of a different type.
func (c *comparer) entry(local, remote *manifest.Entry) {
	if remote.IsDir() {
		if local != nil && !local.IsDir() {
			// A local file stands where the remote has a directory. The
			// file goes, the directory contents get fetched.
			c.deleteTree(local)
			local = nil
		}
		c.dirs(local, remote)
		return
	}

	if local == nil {
		c.plan.Fetch = append(c.plan.Fetch, remote)
		return
	}

	if local.IsDir() {
		c.deleteTree(local)
		c.plan.Fetch = append(c.plan.Fetch, remote)
		return
	}

	if local.Hash != remote.Hash {
		c.plan.Fetch = append(c.plan.Fetch, remote)
		return
	}

	if c.verify != nil && c.verify.Match(remote.Name) {
		c.plan.Verify = append(c.plan.Verify, remote)
	}
}

// deleteTree schedules a local-only subtree for deletion, children before
// parents. Protected paths survive, and so does every directory above
// them. The return value reports whether the subtree was fully scheduled.
func (c *comparer) deleteTree(e *manifest.Entry) bool {
	if c.protect != nil && c.protect.Match(e.Name) {
		l.Debugln("protected, not deleting:", e.Name)
		return false
	}

	if !e.IsDir() {
		c.plan.Delete = append(c.plan.Delete, e.Name)
		return true
	}

	all := true
	for _, child := range sortedChildren(e) {
		if !c.deleteTree(child) {
			all = false
		}
	}
	if all {
		c.plan.Delete = append(c.plan.Delete, e.Name)
	}
	return all
}

func sortedChildren(e *manifest.Entry) []*manifest.Entry {
	if e == nil {
		return nil
	}
	return e.SortedChildren()
}

// baseName returns the map key a child is stored under in its parent.
func baseName(e *manifest.Entry) string {
	name := e.Name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}
