// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package manifest

import "fmt"

// A Scope identifies which logical content root a manifest describes. One
// manifest covers exactly one scope.
type Scope string

const (
	ScopeClient  Scope = "client"
	ScopeAssets  Scope = "assets"
	ScopeRuntime Scope = "runtime"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeClient, ScopeAssets, ScopeRuntime:
		return true
	}
	return false
}

func (s Scope) String() string {
	return string(s)
}

func (s *Scope) UnmarshalText(bs []byte) error {
	v := Scope(bs)
	if !v.Valid() {
		return fmt.Errorf("unknown content scope %q", bs)
	}
	*s = v
	return nil
}
