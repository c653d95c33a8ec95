// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest is the SHA256 content hash of a file. The zero value means
// "no fingerprint" (for example, the running file could not be read);
// a real digest of any readable file is never the zero value for
// practical purposes, so IsZero is a safe presence check.
type Digest [sha256.Size]byte

// String returns the hex-encoded representation of the digest. This is
// the canonical format used in the ledger, transition state files, and
// log output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the zero value, meaning no
// fingerprint was computed.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// File computes the SHA256 digest of the file at path. The file is
// streamed through the hash function in chunks (via io.Copy) to keep
// memory usage constant regardless of file size. A read failure at any
// point returns an error; a partial digest is never produced.
func File(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for fingerprinting: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("fingerprinting %s: %w", path, err)
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// Parse parses a hex-encoded SHA256 digest string into a Digest.
// Returns an error if the string is not a valid 64-character hex
// encoding of 32 bytes.
func Parse(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing fingerprint: %w", err)
	}
	if len(decoded) != sha256.Size {
		return digest, fmt.Errorf("fingerprint is %d bytes, want %d", len(decoded), sha256.Size)
	}
	copy(digest[:], decoded)
	return digest, nil
}
