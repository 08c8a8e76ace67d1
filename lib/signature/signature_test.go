// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package signature

import (
	"bytes"
	"errors"
	"testing"
)

var payload = []byte("The quick brown fox jumps over the lazy dog")

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(priv, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	if err := Verify(pub, sig, bytes.NewReader(payload)); err != nil {
		t.Error("signature should verify:", err)
	}
}

func TestVerifyTamperedData(t *testing.T) {
	priv, pub, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Sign(priv, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte{}, payload...)
	tampered[0] ^= 0x01
	if err := Verify(pub, sig, bytes.NewReader(tampered)); !errors.Is(err, ErrSignatureInvalid) {
		t.Error("expected ErrSignatureInvalid, got", err)
	}

	badSig := append([]byte{}, sig...)
	badSig[0] ^= 0x01
	if err := Verify(pub, badSig, bytes.NewReader(payload)); !errors.Is(err, ErrSignatureInvalid) {
		t.Error("expected ErrSignatureInvalid, got", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	priv, _, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	_, otherPub, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(priv, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(otherPub, sig, bytes.NewReader(payload)); err == nil {
		t.Error("verification with an unrelated key should fail")
	}
}

func TestParseGarbageKeys(t *testing.T) {
	if _, err := Sign([]byte("not a pem block"), bytes.NewReader(payload)); err == nil {
		t.Error("expected error for garbage private key")
	}
	if err := Verify([]byte("not a pem block"), []byte{0}, bytes.NewReader(payload)); err == nil {
		t.Error("expected error for garbage public key")
	}
}
