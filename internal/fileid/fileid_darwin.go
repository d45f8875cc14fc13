// Copyright (c) the forklift authors
// Licensed under the MIT license

package fileid

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cespare/xxhash/v2"
)

func Get(pathname string) (ID, error) {
	inf, err := os.Lstat(pathname)
	if err != nil {
		return ID{}, err
	}
	stat, ok := inf.Sys().(*syscall.Stat_t)
	if !ok {
		return ID{}, ErrNotOS
	}

	var id ID
	binary.BigEndian.PutUint64(id[:], stat.Ino)
	var h xxhash.Digest
	binary.Write(&h, binary.BigEndian, stat.Birthtimespec.Sec)
	binary.Write(&h, binary.BigEndian, uint32(stat.Birthtimespec.Nsec))
	h.WriteString(filepath.Base(pathname))
	binary.BigEndian.PutUint32(id[8:], uint32(h.Sum64()))

	return id, nil
}
