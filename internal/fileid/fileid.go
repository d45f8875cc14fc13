// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package fileid derives a stable identity for an archive file on disk,
// used to key cached listings. The identity survives renames of the
// containing directory but not edits to the file itself.
package fileid

import (
	"encoding/hex"
	"errors"
)

// ID is (64 bits of inode number) + (32 bits of hash of the file's
// creation time and base name).
type ID [12]byte

var ErrNotOS = errors.New("file identity not available on this platform")

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
