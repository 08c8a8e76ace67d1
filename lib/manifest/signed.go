// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alauncher/updater/lib/signature"
)

// signedWire is the JSON envelope: the manifest payload fields with a
// top-level signature as their sibling.
type signedWire struct {
	Root         *Entry    `json:"root"`
	GeneratedAt  time.Time `json:"generatedAt"`
	ContentScope Scope     `json:"contentScope"`
	Signature    string    `json:"signature"`
}

// A Signed holds a received manifest envelope that has not yet been
// verified. It is transient: after a successful Verify only the returned
// Manifest should be retained.
type Signed struct {
	manifest Manifest
	sig      []byte
}

// SignManifest canonicalizes the manifest, signs it with the given private
// key and returns the wire form envelope.
func SignManifest(m *Manifest, privKeyPEM []byte) ([]byte, error) {
	canonical, err := m.CanonicalBytes()
	if err != nil {
		return nil, err
	}

	sig, err := signature.Sign(privKeyPEM, bytes.NewReader(canonical))
	if err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	}

	return json.Marshal(signedWire{
		Root:         m.Root,
		GeneratedAt:  m.GeneratedAt,
		ContentScope: m.ContentScope,
		Signature:    hex.EncodeToString(sig),
	})
}

// ParseSigned decodes a wire form envelope. Decoding is deliberately
// lenient about the tree contents: path validation happens in Verify,
// after the signature has been checked, so that nothing acts on an
// unverified payload.
func ParseSigned(bs []byte) (*Signed, error) {
	var wire signedWire
	if err := json.Unmarshal(bs, &wire); err != nil {
		return nil, fmt.Errorf("parsing signed manifest: %w", err)
	}
	if wire.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidEntry)
	}

	sig, err := hex.DecodeString(wire.Signature)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}

	return &Signed{
		manifest: Manifest{
			Root:         wire.Root,
			GeneratedAt:  wire.GeneratedAt,
			ContentScope: wire.ContentScope,
		},
		sig: sig,
	}, nil
}

// Verify checks the envelope signature against the recomputed canonical
// bytes and, only on success, validates the tree structure. The returned
// manifest is the single trusted value; on any error the envelope contents
// must be discarded.
func (s *Signed) Verify(pubKeyPEM []byte) (*Manifest, error) {
	canonical, err := s.manifest.CanonicalBytes()
	if err != nil {
		return nil, err
	}

	if err := signature.Verify(pubKeyPEM, s.sig, bytes.NewReader(canonical)); err != nil {
		return nil, err
	}

	// A valid signature over an invalid tree still means rejection; a
	// trusted publisher does not produce traversal paths.
	if err := s.manifest.Root.Validate(); err != nil {
		return nil, err
	}

	return &s.manifest, nil
}
