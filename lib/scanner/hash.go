// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// SHA256OfNothing is the hex digest of the empty input, the content hash of
// an empty file.
const SHA256OfNothing = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

type Counter interface {
	Update(bytes int64)
}

// HashFile returns the hex encoded content hash of the file at the given
// absolute path. The context is checked between read chunks so a cancelled
// hash converges within one chunk read.
func HashFile(ctx context.Context, path string, counter Counter) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	if counter == nil {
		counter = (*noopCounter)(nil)
	}

	hf := sha256.New()

	// A 32k buffer is used for copying into the hash function.
	buf := make([]byte, 32<<10)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := fd.Read(buf)
		if n > 0 {
			hf.Write(buf[:n])
			counter.Update(int64(n))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hf.Sum(nil)), nil
}

// FastHash returns the placeholder content hash used for fast-check files:
// a digest over the byte size only, so that equal sized files compare equal
// without reading their content. Publisher and client must apply the same
// fast-check pattern set for the comparison to be meaningful.
func FastHash(size int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("fastcheck/%d", size)))
	return hex.EncodeToString(sum[:])
}

type noopCounter struct{}

func (*noopCounter) Update(bytes int64) {}
