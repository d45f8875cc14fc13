// Copyright (c) the forklift authors
// Licensed under the MIT license

package fileid

import (
	"encoding/binary"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

// Get stats pathname with statx to reach the birth time, which plain
// stat(2) cannot report.
func Get(pathname string) (ID, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, pathname,
		unix.AT_SYMLINK_NOFOLLOW,
		unix.STATX_INO|unix.STATX_BTIME,
		&stx)
	if err != nil {
		return ID{}, err
	}

	var id ID
	binary.BigEndian.PutUint64(id[:], stx.Ino)
	var h xxhash.Digest
	binary.Write(&h, binary.BigEndian, stx.Btime.Sec)
	binary.Write(&h, binary.BigEndian, stx.Btime.Nsec)
	h.WriteString(filepath.Base(pathname))
	binary.BigEndian.PutUint32(id[8:], uint32(h.Sum64()))

	return id, nil
}
