// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package osutil

import (
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// (max filename length supported by FS) - len(TempPrefix) - len(".tmp"),
// assuming ext4 style 255 byte names with some margin for encrypted
// filesystems that expand names.
const maxFilenameLength = 176

// IsTemporary returns true for file names that belong to in-progress
// downloads or atomic writes and should never be treated as content.
func IsTemporary(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

// TempName returns the temporary download name for the given final path,
// in the same directory. Overlong names are hashed to stay within
// filesystem limits.
func TempName(name string) string {
	tdir := filepath.Dir(name)
	tbase := filepath.Base(name)
	if len(tbase) > maxFilenameLength {
		tbase = fmt.Sprintf("%x", md5.Sum([]byte(name)))
	}
	return filepath.Join(tdir, fmt.Sprintf("%s%s.tmp", TempPrefix, tbase))
}

// InWritableDir calls fn(path), while making sure that the directory
// containing `path` is writable for the duration of the call.
func InWritableDir(fn func(string) error, path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory: " + path)
	}
	if info.Mode()&0o200 == 0 {
		// A non-writeable directory (for this user; we assume that's the
		// relevant part). Temporarily change the mode so we can delete the
		// file or directory inside it.
		err = os.Chmod(dir, 0o755)
		if err == nil {
			defer func() {
				err = os.Chmod(dir, info.Mode())
				if err != nil {
					// We managed to change the permission bits like a
					// millisecond ago, so it'd be bizarre if we couldn't
					// change it back.
					panic(err)
				}
			}()
		}
	}

	return fn(path)
}

// Rename moves a temporary file to its final place. The source is removed
// if the rename fails, so use only for committing a temp file to its final
// location. On Windows a read-only destination is made writable first.
func Rename(from, to string) error {
	if !(runtime.GOOS == "windows" && strings.EqualFold(from, to)) {
		defer os.Remove(from)
	}

	if runtime.GOOS == "windows" {
		os.Chmod(to, 0o666)
		if !strings.EqualFold(from, to) {
			err := os.Remove(to)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return os.Rename(from, to)
}
