// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package manifest

import (
	"testing"

	"github.com/d4l3k/messagediff"

	"github.com/alauncher/updater/lib/signature"
)

func signedFixture(t *testing.T) (*Manifest, []byte, []byte, []byte) {
	t.Helper()
	priv, pub, err := signature.GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	m := New(buildTree(t), ScopeClient)
	wire, err := SignManifest(m, priv)
	if err != nil {
		t.Fatal(err)
	}
	return m, wire, priv, pub
}

func TestSignVerifyRoundTrip(t *testing.T) {
	m, wire, _, pub := signedFixture(t)

	signed, err := ParseSigned(wire)
	if err != nil {
		t.Fatal(err)
	}
	verified, err := signed.Verify(pub)
	if err != nil {
		t.Fatal(err)
	}

	if diff, equal := messagediff.PrettyDiff(m, verified); !equal {
		t.Errorf("verified manifest differs from signed one:\n%s", diff)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	_, wire, _, pub := signedFixture(t)

	// Flipping the low bit of any wire byte must make the envelope fail,
	// either at parse time or at signature verification.
	for i := 0; i < len(wire); i += 7 {
		tampered := make([]byte, len(wire))
		copy(tampered, wire)
		tampered[i] ^= 0x01

		signed, err := ParseSigned(tampered)
		if err != nil {
			continue
		}
		if _, err := signed.Verify(pub); err == nil {
			t.Errorf("bit flip at byte %d went undetected", i)
		}
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, wire, _, _ := signedFixture(t)
	_, otherPub, err := signature.GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	signed, err := ParseSigned(wire)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := signed.Verify(otherPub); err == nil {
		t.Error("verification with an unrelated key should fail")
	}
}

func TestVerifyRejectsTraversalTree(t *testing.T) {
	priv, pub, err := signature.GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	// A correctly signed manifest whose tree claims a traversal path must
	// still be rejected, after the signature check.
	root, _ := NewDir("")
	root.Children["evil"] = &Entry{Name: "../evil", Type: TypeFile, Size: 1, Hash: "00"}
	wire, err := SignManifest(New(root, ScopeClient), priv)
	if err != nil {
		t.Fatal(err)
	}

	signed, err := ParseSigned(wire)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := signed.Verify(pub); err == nil {
		t.Error("traversal path in a signed tree should be rejected")
	}
}
