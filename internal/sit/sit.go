// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package sit decodes StuffIt 1.x archive headers and entry records.
//
// Payload decompression is out of scope: compressed fork bytes are an
// opaque span that the entry reader seeks past. What remains is still
// enough to list an archive: names, type/creator codes, Finder flags,
// timestamps, per-fork sizes and checksums.
//
// Layout, after the macutils sources and the ArchiveTeam notes:
//
//	archive header     22 bytes
//	entry header      112 bytes
//	compressed resource fork (absent for folder markers)
//	compressed data fork     (absent for folder markers)
//	... repeated ...
//
// Folders are flat: a folder-start marker entry, its contents, then a
// folder-end marker, with no payload on the markers themselves.
package sit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/svema/forklift/internal/macroman"
)

var ErrFormat = errors.New("not a StuffIt archive")

const (
	headerLen = 22
	entryLen  = 112
	nameMax   = 63
)

// macEpochOffset converts seconds-since-1904 to seconds-since-1970.
const macEpochOffset = 2082844800

var magic1 = []string{
	"SIT!", "ST46", "ST50", "ST60", "ST65", "STin", "STi2", "STi3", "STi4",
}

const magic2 = "rLau"

// Compression method codes. Only the two folder markers and the encrypted
// marker change how the stream is walked; the rest are informational here.
const (
	CompNone        = 0
	CompRLE         = 1
	CompLZC         = 2
	CompHuffman     = 3
	CompLZAH        = 5
	CompFixedHuff   = 6
	CompMW          = 8
	CompLZHuff      = 13
	CompInstaller   = 14
	CompArsenic     = 15
	CompEncrypted   = 16
	CompFolderStart = 32
	CompFolderEnd   = 33
)

// Archive header field offsets.
const (
	hdrMagic1  = 0
	hdrEntries = 4
	hdrLength  = 6
	hdrMagic2  = 10
	hdrVersion = 14
)

// Entry record field offsets.
const (
	entRsrcComp    = 0
	entDataComp    = 1
	entNameLen     = 2
	entName        = 3
	entType        = 66
	entCreator     = 70
	entFlags       = 74
	entCreateTime  = 76
	entModTime     = 80
	entRsrcLen     = 84
	entDataLen     = 88
	entRsrcCompLen = 92
	entDataCompLen = 96
	entRsrcCRC     = 100
	entDataCRC     = 102
	entHeaderCRC   = 110
)

// Archive is one decode session over a seekable stream. Next advances the
// stream; there is no rewind. Not safe for concurrent use.
type Archive struct {
	r io.ReadSeeker

	Entries uint16 // top-level entry count from the header
	Length  uint32 // archive length in bytes, per the header
	Version uint8

	buf   [entryLen]byte
	entry Entry
}

// Entry is one decoded entry record. The pointer returned by Next aliases
// per-archive storage and is only valid until the next call; copy the
// struct (and RawName) to keep it.
type Entry struct {
	RsrcComp byte // compression method, or folder/encryption marker
	DataComp byte

	RawName []byte // MacRoman, aliases the archive's record buffer
	Name    string // transliterated to portable ASCII

	Type    [4]byte
	Creator [4]byte
	Flags   uint16 // Finder flags

	CreateSeconds uint32 // seconds since the 1904 Mac epoch, unconverted
	ModSeconds    uint32

	RsrcLen     uint32 // uncompressed fork lengths
	DataLen     uint32
	RsrcCompLen uint32 // compressed fork lengths, as stored in the archive
	DataCompLen uint32

	RsrcCRC   uint16
	DataCRC   uint16
	HeaderCRC uint16
}

// Open reads and validates the 22-byte archive header.
func Open(r io.ReadSeeker) (*Archive, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, unexpectedEOF(err))
	}

	ok := false
	for _, m := range magic1 {
		if string(hdr[hdrMagic1:hdrMagic1+4]) == m {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: magic %q unrecognized", ErrFormat, hdr[hdrMagic1:hdrMagic1+4])
	}
	if string(hdr[hdrMagic2:hdrMagic2+4]) != magic2 {
		return nil, fmt.Errorf("%w: second magic %q, want %q", ErrFormat, hdr[hdrMagic2:hdrMagic2+4], magic2)
	}

	return &Archive{
		r:       r,
		Entries: binary.BigEndian.Uint16(hdr[hdrEntries:]),
		Length:  binary.BigEndian.Uint32(hdr[hdrLength:]),
		Version: hdr[hdrVersion],
	}, nil
}

// Next decodes the next entry record and seeks past its compressed forks.
// It returns io.EOF, cleanly, when the stream ends between records; a
// stream ending inside a record is a hard error.
func (a *Archive) Next() (*Entry, error) {
	n, err := io.ReadFull(a.r, a.buf[:])
	switch err {
	case nil:
	case io.EOF:
		return nil, io.EOF
	case io.ErrUnexpectedEOF:
		return nil, fmt.Errorf("entry record truncated after %d bytes: %w", n, err)
	default:
		return nil, err
	}

	buf := a.buf[:]
	nameLen := int(buf[entNameLen])
	if nameLen > nameMax {
		nameLen = nameMax // oversized length bytes are truncated, not fatal
	}

	e := &a.entry
	*e = Entry{
		RsrcComp:      buf[entRsrcComp],
		DataComp:      buf[entDataComp],
		RawName:       buf[entName : entName+nameLen],
		Flags:         binary.BigEndian.Uint16(buf[entFlags:]),
		CreateSeconds: binary.BigEndian.Uint32(buf[entCreateTime:]),
		ModSeconds:    binary.BigEndian.Uint32(buf[entModTime:]),
		RsrcLen:       binary.BigEndian.Uint32(buf[entRsrcLen:]),
		DataLen:       binary.BigEndian.Uint32(buf[entDataLen:]),
		RsrcCompLen:   binary.BigEndian.Uint32(buf[entRsrcCompLen:]),
		DataCompLen:   binary.BigEndian.Uint32(buf[entDataCompLen:]),
		RsrcCRC:       binary.BigEndian.Uint16(buf[entRsrcCRC:]),
		DataCRC:       binary.BigEndian.Uint16(buf[entDataCRC:]),
		HeaderCRC:     binary.BigEndian.Uint16(buf[entHeaderCRC:]),
	}
	e.Name = macroman.String(e.RawName)
	copy(e.Type[:], buf[entType:])
	copy(e.Creator[:], buf[entCreator:])

	// Folder markers carry no payload; everything else is skipped over,
	// leaving the stream at the start of the next record.
	if !e.IsFolderStart() && !e.IsFolderEnd() {
		skip := int64(e.RsrcCompLen) + int64(e.DataCompLen)
		if _, err := a.r.Seek(skip, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skipping %d fork bytes: %w", skip, err)
		}
	}
	return e, nil
}

func (e *Entry) IsFolderStart() bool { return e.RsrcComp == CompFolderStart }
func (e *Entry) IsFolderEnd() bool   { return e.RsrcComp == CompFolderEnd }
func (e *Entry) IsEncrypted() bool   { return e.RsrcComp == CompEncrypted }

// IsApplication reports whether the Finder type code is "APPL".
func (e *Entry) IsApplication() bool { return string(e.Type[:]) == "APPL" }

// CompressedSize is the total stored size of both forks.
func (e *Entry) CompressedSize() uint64 {
	return uint64(e.RsrcCompLen) + uint64(e.DataCompLen)
}

// UncompressedSize is the total unpacked size of both forks.
func (e *Entry) UncompressedSize() uint64 {
	return uint64(e.RsrcLen) + uint64(e.DataLen)
}

// ModTime converts the raw 1904-epoch modification time.
func (e *Entry) ModTime() time.Time {
	return time.Unix(int64(e.ModSeconds)-macEpochOffset, 0).UTC()
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
