// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package binhex decodes BinHex 4.0 (.hqx) streams.
//
// A BinHex file is a classic Macintosh file flattened into 7-bit-safe text:
// a 64-character transport encoding over a byte-level run-length layer, with
// a header record and two forks (data, then resource), each guarded by a
// CRC-16. The payload is usually embedded in surrounding text such as an
// email body, so decoding starts with a scan for the line-initial ":" that
// opens the encoded region.
//
// A File is a single decode session over one stream. It is not safe for
// concurrent use. The caller must read the data fork before the resource
// fork; the stream only runs forward.
package binhex

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/svema/forklift/internal/macroman"
)

var (
	ErrFormat    = errors.New("not a BinHex file")
	ErrChecksum  = errors.New("BinHex checksum mismatch")
	ErrForkOrder = errors.New("BinHex forks must be read in order")
)

const (
	runMarker = 0x90 // introduces a run-length repeat
	nameMax   = 64   // name length byte + terminator must stay under this
)

// Header is the decoded BinHex header record.
type Header struct {
	RawName []byte  // MacRoman, as stored
	Name    string  // transliterated to portable ASCII
	Type    [4]byte // Finder type code
	Creator [4]byte // Finder creator code
	Flags   uint16  // Finder flags
	DataLen int32
	RsrcLen int32
	CRC     uint16 // stored header CRC, already verified
}

type stage int

const (
	stageData stage = iota
	stageRsrc
	stageDone
)

// trailing says how much of the final 3-byte group the stream was short by.
// A trailing 4-character group decodes to 3 bytes; 3 characters to 2; 2 to 1.
type trailing int

const (
	complete trailing = iota
	shortByOne
	shortByTwo
)

// File is one BinHex decode session. All mutable decode state (checksum
// accumulator, run-length counters, read-ahead buffers) lives here and is
// owned by the session exclusively.
type File struct {
	r   io.Reader
	hdr Header

	crc uint16 // running CRC over decoded bytes

	// run-length layer
	repeat     int
	repeatChar byte

	// 6-bit regrouping: 4 alphabet characters become 3 bytes
	group    [3]byte
	groupPos int
	groupEnd int
	trail    trailing
	atEOF    bool // logical stream ended (":" or end of input)

	// raw read-ahead
	buf     [1024]byte
	bufPos  int
	bufLen  int
	rawErr  error
	pending int // byte pushed back by the header scan, -1 if none

	stage stage
}

// Open finds and decodes the BinHex header in r, verifying its CRC.
// The returned File is positioned at the start of the data fork.
func Open(r io.Reader) (*File, error) {
	f := &File{r: r, pending: -1}
	if err := f.findHeader(); err != nil {
		return nil, err
	}
	if err := f.readHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

// Header returns the decoded header record.
func (f *File) Header() Header { return f.hdr }

// ReadDataFork decodes the data fork into w and verifies its CRC.
// It must be called exactly once, before ReadResourceFork. A nil w
// discards the fork bytes (the CRC is still checked).
func (f *File) ReadDataFork(w io.Writer) error {
	if f.stage != stageData {
		return fmt.Errorf("%w: data fork already consumed", ErrForkOrder)
	}
	if err := f.copyFork(w, f.hdr.DataLen, true); err != nil {
		return err
	}
	f.stage = stageRsrc
	return nil
}

// ReadResourceFork decodes the resource fork into w and verifies its CRC.
// Requesting it before the data fork is an error.
func (f *File) ReadResourceFork(w io.Writer) error {
	switch f.stage {
	case stageData:
		return fmt.Errorf("%w: resource fork requested before data fork", ErrForkOrder)
	case stageDone:
		return fmt.Errorf("%w: resource fork already consumed", ErrForkOrder)
	}
	if err := f.copyFork(w, f.hdr.RsrcLen, false); err != nil {
		return err
	}
	f.stage = stageDone
	return nil
}

// findHeader scans the raw stream byte-by-byte for a ":" at the start of a
// line followed by an alphabet character, then pushes that character back
// so decoding starts on it. One byte at a time is slow but reliable: the
// payload may sit inside arbitrary surrounding text.
func (f *File) findHeader() error {
	lineStart, headerStart := true, false
	for {
		c, err := f.rawByte()
		if err == io.EOF {
			return fmt.Errorf("%w: no header found", ErrFormat)
		} else if err != nil {
			return err
		}
		switch c {
		case '\n', '\r':
			lineStart = true
		case ':':
			if lineStart {
				headerStart = true
			}
		default:
			if headerStart && sixBitTable[c] >= 0 {
				f.pending = int(c)
				return nil
			}
			headerStart = false
			lineStart = false
		}
	}
}

func (f *File) readHeader() error {
	nameLen, err := f.readByteCRC()
	if err != nil {
		return fmt.Errorf("%w: reading name length: %w", ErrFormat, unexpectedEOF(err))
	}
	n := int(nameLen) + 1 // the stored name carries a trailing NUL
	if n >= nameMax {
		return fmt.Errorf("%w: name length %d too long", ErrFormat, n)
	}

	name := make([]byte, n)
	if err := f.readFull(name); err != nil {
		return fmt.Errorf("%w: reading name: %w", ErrFormat, err)
	}
	f.hdr.RawName = name[:nameLen]
	f.hdr.Name = macroman.String(name[:nameLen])

	if err := f.readFull(f.hdr.Type[:]); err != nil {
		return fmt.Errorf("%w: reading type: %w", ErrFormat, err)
	}
	if err := f.readFull(f.hdr.Creator[:]); err != nil {
		return fmt.Errorf("%w: reading creator: %w", ErrFormat, err)
	}

	if f.hdr.Flags, err = f.readUint16(); err != nil {
		return fmt.Errorf("%w: reading flags: %w", ErrFormat, unexpectedEOF(err))
	}

	dataLen, err := f.readUint32()
	if err != nil {
		return fmt.Errorf("%w: reading data fork length: %w", ErrFormat, unexpectedEOF(err))
	}
	rsrcLen, err := f.readUint32()
	if err != nil {
		return fmt.Errorf("%w: reading resource fork length: %w", ErrFormat, unexpectedEOF(err))
	}
	f.hdr.DataLen, f.hdr.RsrcLen = int32(dataLen), int32(rsrcLen)
	if f.hdr.DataLen < 0 || f.hdr.RsrcLen < 0 {
		return fmt.Errorf("%w: negative fork length", ErrFormat)
	}

	if f.hdr.CRC, err = f.readUint16NoCRC(); err != nil {
		return fmt.Errorf("%w: reading header CRC: %w", ErrFormat, unexpectedEOF(err))
	}
	if f.crc != f.hdr.CRC {
		return fmt.Errorf("%w: header CRC %#04x, want %#04x", ErrChecksum, f.crc, f.hdr.CRC)
	}
	return nil
}

func (f *File) copyFork(w io.Writer, length int32, isData bool) error {
	if length == 0 {
		// A zero-length data fork still carries a CRC, which must be
		// consumed to keep the stream aligned for the resource fork.
		// A zero-length resource fork is simply absent.
		if isData {
			if _, err := f.readUint16(); err != nil {
				return fmt.Errorf("reading empty fork CRC: %w", unexpectedEOF(err))
			}
		}
		return nil
	}

	if w == nil {
		w = io.Discard
	}
	bw := bufio.NewWriter(w)

	f.crc = 0
	for i := int32(0); i < length; i++ {
		c, err := f.readByteCRC()
		if err != nil {
			return fmt.Errorf("fork truncated at %d of %d bytes: %w", i, length, unexpectedEOF(err))
		}
		if err := bw.WriteByte(c); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	stored, err := f.readUint16NoCRC()
	if err != nil {
		return fmt.Errorf("reading fork CRC: %w", unexpectedEOF(err))
	}
	if f.crc != stored {
		return fmt.Errorf("%w: fork CRC %#04x, want %#04x", ErrChecksum, f.crc, stored)
	}
	return nil
}

// readFull fills buf with decoded, CRC-accumulated bytes.
func (f *File) readFull(buf []byte) error {
	for i := range buf {
		c, err := f.readByteCRC()
		if err != nil {
			return unexpectedEOF(err)
		}
		buf[i] = c
	}
	return nil
}

func (f *File) readUint16() (uint16, error) {
	var v uint16
	for range 2 {
		c, err := f.readByteCRC()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint16(c)
	}
	return v, nil
}

// readUint16NoCRC reads a stored CRC field. The field must not checksum its
// own encoded value, so the accumulator is fed zeros in its place.
func (f *File) readUint16NoCRC() (uint16, error) {
	var v uint16
	for range 2 {
		c, err := f.readByte()
		if err != nil {
			return 0, err
		}
		f.updateCRC(0)
		v = v<<8 | uint16(c)
	}
	return v, nil
}

func (f *File) readUint32() (uint32, error) {
	var v uint32
	for range 4 {
		c, err := f.readByteCRC()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(c)
	}
	return v, nil
}

func (f *File) readByteCRC() (byte, error) {
	c, err := f.readByte()
	if err == nil {
		f.updateCRC(c)
	}
	return c, err
}

// readByte is the run-length layer over the raw decoded bytes. A 0x90
// marker followed by count n means the previous byte occurs n times in
// total; the byte itself was already emitted once before the marker, one
// copy is returned now, and n-2 more are owed. Count 0 makes 0x90 literal.
// The bias is a historical convention and must not be "fixed": getting it
// wrong shifts every later byte in the stream.
func (f *File) readByte() (byte, error) {
	if f.repeat > 0 {
		f.repeat--
		return f.repeatChar, nil
	}

	c, err := f.rawDecoded()
	if err != nil {
		return 0, err
	}
	if c != runMarker {
		f.repeatChar = c
		return c, nil
	}

	count, err := f.rawDecoded()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		f.repeatChar = runMarker
		return runMarker, nil
	}
	f.repeat = int(count) - 2
	return f.repeatChar, nil
}

// rawDecoded reconstructs bytes from 4-character 6-bit groups:
// 6-6-6-6 repacked as 8-8-8. A short final group of 3 or 2 characters
// yields 2 or 1 trailing bytes; a lone character yields nothing.
func (f *File) rawDecoded() (byte, error) {
	if f.groupPos == f.groupEnd {
		if f.trail != complete {
			return 0, io.EOF
		}
		var vals [4]int
		n := 0
		for i := range vals {
			v, err := f.sixBits()
			if err == io.EOF {
				break
			} else if err != nil {
				return 0, err
			}
			vals[i] = v
			n++
		}
		switch n {
		case 4: // full group
		case 3:
			f.trail = shortByOne
		case 2:
			f.trail = shortByTwo
		default:
			return 0, io.EOF
		}
		f.group[0] = byte(vals[0]<<2 | vals[1]>>4)
		f.group[1] = byte(vals[1]<<4 | vals[2]>>2)
		f.group[2] = byte(vals[2]<<6 | vals[3])
		f.groupPos, f.groupEnd = 0, n-1
	}
	c := f.group[f.groupPos]
	f.groupPos++
	return c, nil
}

// sixBits returns the next 6-bit value from the transport encoding.
// CR and LF are skipped; ":" or end of input ends the logical stream;
// any other byte outside the alphabet is fatal.
func (f *File) sixBits() (int, error) {
	if f.atEOF {
		return 0, io.EOF
	}
	for {
		c, err := f.rawByte()
		if err != nil {
			f.atEOF = true
			return 0, err
		}
		switch c {
		case '\n', '\r':
			continue
		case ':':
			f.atEOF = true
			return 0, io.EOF
		default:
			v := sixBitTable[c]
			if v < 0 {
				f.atEOF = true
				return 0, fmt.Errorf("%w: byte %#02x outside alphabet", ErrFormat, c)
			}
			return int(v), nil
		}
	}
}

func (f *File) rawByte() (byte, error) {
	if f.pending >= 0 {
		c := byte(f.pending)
		f.pending = -1
		return c, nil
	}
	if f.bufPos >= f.bufLen {
		for {
			if f.rawErr != nil {
				return 0, f.rawErr
			}
			n, err := f.r.Read(f.buf[:])
			f.bufPos, f.bufLen = 0, n
			f.rawErr = err
			if n > 0 {
				break
			}
		}
	}
	c := f.buf[f.bufPos]
	f.bufPos++
	return c, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
