// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package signature provides simple methods to create and verify signatures
// in PEM format.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

// ErrSignatureInvalid is returned when a signature does not verify against
// the given data and public key. Data guarded by a failed verification must
// not be handed to any other component.
var ErrSignatureInvalid = errors.New("signature invalid")

// GenerateKeys returns a new key pair, with the private and public key
// parts in PEM format.
func GenerateKeys() (privKey []byte, pubKey []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	privKey = pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privDER,
	})

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	pubKey = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return privKey, pubKey, nil
}

// Sign computes the hash of the given data and signs it with the private
// key, returning the raw signature bytes.
func Sign(privKeyPEM []byte, data io.Reader) ([]byte, error) {
	key, err := parsePrivateKey(privKeyPEM)
	if err != nil {
		return nil, err
	}

	digest, err := hashReader(data)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(key, digest), nil
}

// Verify computes the hash of the given data and verifies the signature
// with the public key. A nil return means the signature is correct. The
// underlying comparison is constant time.
func Verify(pubKeyPEM []byte, sig []byte, data io.Reader) error {
	key, err := parsePublicKey(pubKeyPEM)
	if err != nil {
		return err
	}

	digest, err := hashReader(data)
	if err != nil {
		return err
	}

	if !ed25519.Verify(key, digest, sig) {
		return ErrSignatureInvalid
	}
	return nil
}

func hashReader(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func parsePrivateKey(bs []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(bs)
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return edKey, nil
}

func parsePublicKey(bs []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(bs)
	if block == nil {
		return nil, errors.New("no PEM block found in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	edKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}
	return edKey, nil
}
