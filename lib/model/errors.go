// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import "errors"

var (
	// ErrPathEscape means a manifest entry resolved to a path outside the
	// sandbox root. The entry fails, the session continues.
	ErrPathEscape = errors.New("destination escapes sandbox root")

	// ErrHashMismatch means downloaded or local content did not match the
	// manifest hash.
	ErrHashMismatch = errors.New("content hash mismatch")

	// ErrNoSuchSession is returned for cancellation requests against an
	// unknown or already terminated session.
	ErrNoSuchSession = errors.New("no such session")
)
