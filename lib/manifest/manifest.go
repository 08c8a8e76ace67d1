// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package manifest defines the content manifest tree, its canonical
// serialized form and the signed envelope exchanged between the publisher
// and clients.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

var (
	ErrInvalidPath  = errors.New("invalid relative path")
	ErrInvalidEntry = errors.New("invalid manifest entry")
)

// An Entry is a node in the manifest tree, either a file with a content
// hash or a directory with named children. Paths are relative to the
// content root and always slash separated, regardless of platform.
type Entry struct {
	Name     string            `json:"name"`
	Type     EntryType         `json:"type"`
	Size     int64             `json:"size,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	Children map[string]*Entry `json:"children,omitempty"`
}

// NewFile returns a file entry for the given relative path. The hash is the
// hex encoded content digest and must be non-empty.
func NewFile(name string, size int64, hash string) (*Entry, error) {
	if err := CheckRelPath(name); err != nil {
		return nil, err
	}
	if hash == "" || size < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntry, name)
	}
	return &Entry{Name: name, Type: TypeFile, Size: size, Hash: hash}, nil
}

// NewDir returns an empty directory entry for the given relative path. The
// empty name denotes the content root itself.
func NewDir(name string) (*Entry, error) {
	if name != "" {
		if err := CheckRelPath(name); err != nil {
			return nil, err
		}
	}
	return &Entry{Name: name, Type: TypeDir, Children: make(map[string]*Entry)}, nil
}

func (e *Entry) IsDir() bool {
	return e.Type == TypeDir
}

// Insert places child into the tree under its relative path, creating
// intermediate directories as needed. The receiver must be the root entry.
func (e *Entry) Insert(child *Entry) error {
	if !e.IsDir() || e.Name != "" {
		return fmt.Errorf("%w: insert below non-root entry", ErrInvalidEntry)
	}
	if err := CheckRelPath(child.Name); err != nil {
		return err
	}

	parts := strings.Split(child.Name, "/")
	cur := e
	for i := 0; i < len(parts)-1; i++ {
		next, ok := cur.Children[parts[i]]
		if !ok {
			next = &Entry{
				Name:     strings.Join(parts[:i+1], "/"),
				Type:     TypeDir,
				Children: make(map[string]*Entry),
			}
			cur.Children[parts[i]] = next
		} else if !next.IsDir() {
			return fmt.Errorf("%w: %q is a file, not a directory", ErrInvalidEntry, next.Name)
		}
		cur = next
	}
	if cur.Children == nil {
		cur.Children = make(map[string]*Entry)
	}
	cur.Children[parts[len(parts)-1]] = child
	return nil
}

// Lookup returns the entry at the given relative path, or nil.
func (e *Entry) Lookup(name string) *Entry {
	cur := e
	for _, part := range strings.Split(name, "/") {
		if cur == nil || !cur.IsDir() {
			return nil
		}
		cur = cur.Children[part]
	}
	return cur
}

// Validate checks the tree for path traversal attempts and structural
// inconsistencies. A tree built from untrusted input must be validated
// before any path in it is resolved against a filesystem.
func (e *Entry) Validate() error {
	return e.validate(true)
}

func (e *Entry) validate(isRoot bool) error {
	if isRoot {
		if !e.IsDir() || e.Name != "" {
			return fmt.Errorf("%w: root must be an unnamed directory", ErrInvalidEntry)
		}
	} else if err := CheckRelPath(e.Name); err != nil {
		return err
	}

	switch e.Type {
	case TypeFile:
		if e.Hash == "" || e.Size < 0 || len(e.Children) > 0 {
			return fmt.Errorf("%w: %q", ErrInvalidEntry, e.Name)
		}
	case TypeDir:
		if e.Hash != "" || e.Size != 0 {
			return fmt.Errorf("%w: %q", ErrInvalidEntry, e.Name)
		}
		for name, child := range e.Children {
			if base := e.Name + "/" + name; (e.Name == "" && child.Name != name) || (e.Name != "" && child.Name != base) {
				return fmt.Errorf("%w: child key %q does not match entry name %q", ErrInvalidEntry, name, child.Name)
			}
			if err := child.validate(false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, e.Type)
	}
	return nil
}

// SortedChildren returns the children in lexicographic name order.
// Iteration order of the map itself carries no meaning; sorting is for
// deterministic traversal.
func (e *Entry) SortedChildren() []*Entry {
	names := make([]string, 0, len(e.Children))
	for name := range e.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	res := make([]*Entry, len(names))
	for i, name := range names {
		res[i] = e.Children[name]
	}
	return res
}

// Flatten returns all descendant entries, directories before their
// children, in depth first sorted order. The root itself is not included.
func (e *Entry) Flatten() []*Entry {
	var res []*Entry
	for _, child := range e.SortedChildren() {
		res = append(res, child)
		if child.IsDir() {
			res = append(res, child.Flatten()...)
		}
	}
	return res
}

// CheckRelPath rejects paths that are absolute or that could escape the
// content root. It is applied at construction time, not only at
// consumption time.
func CheckRelPath(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if len(name) >= 2 && name[1] == ':' {
		// Windows drive letter prefix
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".", "..":
			return fmt.Errorf("%w: %q", ErrInvalidPath, name)
		}
	}
	return nil
}

// A Manifest describes the expected content of one logical root. It is a
// value: created fresh on each publish, never mutated incrementally.
type Manifest struct {
	Root         *Entry    `json:"root"`
	GeneratedAt  time.Time `json:"generatedAt"`
	ContentScope Scope     `json:"contentScope"`
}

// New returns a manifest for the given root tree. The generation timestamp
// is truncated to whole seconds in UTC so that the canonical form is a
// plain RFC 3339 string.
func New(root *Entry, scope Scope) *Manifest {
	return &Manifest{
		Root:         root,
		GeneratedAt:  time.Now().UTC().Truncate(time.Second),
		ContentScope: scope,
	}
}

// CanonicalBytes returns the canonical serialized form of the manifest:
// fixed field order, children maps in sorted key order. Two equal manifests
// always canonicalize to byte-identical output; signatures are computed
// over exactly these bytes.
func (m *Manifest) CanonicalBytes() ([]byte, error) {
	if m.Root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrInvalidEntry)
	}
	// encoding/json serializes struct fields in declaration order and map
	// keys sorted, which is all the stability we need.
	return json.Marshal(m)
}
