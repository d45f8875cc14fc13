// Copyright (c) the forklift authors
// Licensed under the MIT license

package sit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

func sitHeader(magic string, count uint16, length uint32, version byte) []byte {
	b := make([]byte, headerLen)
	copy(b, magic)
	binary.BigEndian.PutUint16(b[hdrEntries:], count)
	binary.BigEndian.PutUint32(b[hdrLength:], length)
	copy(b[hdrMagic2:], magic2)
	b[hdrVersion] = version
	return b
}

// record builds one 112-byte entry record followed by its payload span.
// nameLen is stored as given, which may disagree with len(name).
func record(e Entry, nameLen byte, payload []byte) []byte {
	b := make([]byte, entryLen)
	b[entRsrcComp] = e.RsrcComp
	b[entDataComp] = e.DataComp
	b[entNameLen] = nameLen
	copy(b[entName:entType], e.RawName)
	copy(b[entType:], e.Type[:])
	copy(b[entCreator:], e.Creator[:])
	binary.BigEndian.PutUint16(b[entFlags:], e.Flags)
	binary.BigEndian.PutUint32(b[entCreateTime:], e.CreateSeconds)
	binary.BigEndian.PutUint32(b[entModTime:], e.ModSeconds)
	binary.BigEndian.PutUint32(b[entRsrcLen:], e.RsrcLen)
	binary.BigEndian.PutUint32(b[entDataLen:], e.DataLen)
	binary.BigEndian.PutUint32(b[entRsrcCompLen:], e.RsrcCompLen)
	binary.BigEndian.PutUint32(b[entDataCompLen:], e.DataCompLen)
	binary.BigEndian.PutUint16(b[entRsrcCRC:], e.RsrcCRC)
	binary.BigEndian.PutUint16(b[entDataCRC:], e.DataCRC)
	binary.BigEndian.PutUint16(b[entHeaderCRC:], e.HeaderCRC)
	return append(b, payload...)
}

func fileEntry(name string, typ, creator string, rsrc, data []byte) []byte {
	e := Entry{
		RawName:     []byte(name),
		RsrcLen:     uint32(len(rsrc) * 2), // pretend 2:1 compression
		DataLen:     uint32(len(data) * 2),
		RsrcCompLen: uint32(len(rsrc)),
		DataCompLen: uint32(len(data)),
	}
	copy(e.Type[:], typ)
	copy(e.Creator[:], creator)
	return record(e, byte(len(name)), append(append([]byte{}, rsrc...), data...))
}

func TestOpenHeader(t *testing.T) {
	a, err := Open(bytes.NewReader(sitHeader("SIT!", 3, 1234, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if a.Entries != 3 || a.Length != 1234 || a.Version != 1 {
		t.Fatalf("header = %d entries, %d bytes, version %d", a.Entries, a.Length, a.Version)
	}
}

func TestMagicVariants(t *testing.T) {
	for _, m := range []string{"SIT!", "ST46", "ST50", "ST60", "ST65", "STin", "STi2", "STi3", "STi4"} {
		if _, err := Open(bytes.NewReader(sitHeader(m, 0, 0, 0))); err != nil {
			t.Errorf("magic %q rejected: %v", m, err)
		}
	}
}

func TestBadMagic(t *testing.T) {
	if _, err := Open(bytes.NewReader(sitHeader("NOPE", 0, 0, 0))); !errors.Is(err, ErrFormat) {
		t.Errorf("bad magic-1: err = %v, want ErrFormat", err)
	}

	hdr := sitHeader("SIT!", 0, 0, 0)
	copy(hdr[hdrMagic2:], "uaLr")
	if _, err := Open(bytes.NewReader(hdr)); !errors.Is(err, ErrFormat) {
		t.Errorf("bad magic-2: err = %v, want ErrFormat", err)
	}
}

func TestShortHeader(t *testing.T) {
	_, err := Open(bytes.NewReader(sitHeader("SIT!", 0, 0, 0)[:10]))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF in the chain", err)
	}
}

func TestEntrySkippingStaysAligned(t *testing.T) {
	// The skip over each entry's compressed forks must land exactly on
	// the next 112-byte record.
	arch := sitHeader("SIT!", 2, 0, 1)
	arch = append(arch, fileEntry("first", "TEXT", "ttxt", []byte("RSRC"), bytes.Repeat([]byte("d"), 100))...)
	arch = append(arch, fileEntry("second", "APPL", "ttxt", nil, []byte("x"))...)

	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}

	e, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "first" || e.DataCompLen != 100 || e.RsrcCompLen != 4 {
		t.Fatalf("first entry = %+v", e)
	}

	e, err = a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "second" || string(e.Type[:]) != "APPL" {
		t.Fatalf("second entry = %+v", e)
	}

	if _, err := a.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF after last entry", err)
	}
}

func TestSingleEmptyEntryThenEOF(t *testing.T) {
	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, fileEntry("empty", "TEXT", "ttxt", nil, nil)...)

	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}
	e, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "empty" || e.UncompressedSize() != 0 {
		t.Fatalf("entry = %+v", e)
	}
	if _, err := a.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestFolderMarkersDoNotSeek(t *testing.T) {
	// Folder markers carry no payload even when their length fields are
	// garbage; a skip here would derail every following record.
	folder := Entry{RsrcComp: CompFolderStart, RawName: []byte("stuff"), RsrcCompLen: 9999, DataCompLen: 9999}
	endMark := Entry{RsrcComp: CompFolderEnd}

	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, record(folder, 5, nil)...)
	arch = append(arch, fileEntry("inner", "TEXT", "ttxt", nil, []byte("abc"))...)
	arch = append(arch, record(endMark, 0, nil)...)

	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}

	e, err := a.Next()
	if err != nil || !e.IsFolderStart() || e.Name != "stuff" {
		t.Fatalf("folder start = %+v, err %v", e, err)
	}
	e, err = a.Next()
	if err != nil || e.Name != "inner" {
		t.Fatalf("inner = %+v, err %v", e, err)
	}
	e, err = a.Next()
	if err != nil || !e.IsFolderEnd() {
		t.Fatalf("folder end = %+v, err %v", e, err)
	}
	if _, err := a.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestTruncatedRecordIsHardError(t *testing.T) {
	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, fileEntry("cut", "TEXT", "ttxt", nil, nil)[:50]...)

	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("err = %v, want a mid-record error", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF in the chain", err)
	}
}

func TestPredicates(t *testing.T) {
	enc := Entry{RsrcComp: CompEncrypted}
	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, record(enc, 0, nil)...)
	a, _ := Open(bytes.NewReader(arch))
	e, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsEncrypted() || e.IsFolderStart() || e.IsFolderEnd() || e.IsApplication() {
		t.Fatalf("predicates wrong for %+v", e)
	}

	app := fileEntry("SimpleText", "APPL", "ttxt", nil, nil)
	a, _ = Open(bytes.NewReader(append(sitHeader("SIT!", 1, 0, 1), app...)))
	e, err = a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsApplication() || e.IsEncrypted() {
		t.Fatalf("predicates wrong for %+v", e)
	}
}

func TestSizesAndModTime(t *testing.T) {
	e := Entry{
		RawName:     []byte("sized"),
		RsrcLen:     10,
		DataLen:     20,
		RsrcCompLen: 5,
		DataCompLen: 6,
		ModSeconds:  macEpochOffset + 86400, // one day into 1970
	}
	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, record(e, 5, make([]byte, 11))...)
	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got.UncompressedSize() != 30 || got.CompressedSize() != 11 {
		t.Fatalf("sizes = %d/%d", got.UncompressedSize(), got.CompressedSize())
	}
	want := time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.ModTime().Equal(want) {
		t.Fatalf("mod time = %v, want %v", got.ModTime(), want)
	}
}

func TestNameHandling(t *testing.T) {
	// MacRoman name transliterated; oversized length byte truncated.
	e := Entry{RawName: []byte{'s', 0x8e, 'a', 'n', 0xd9}}
	arch := sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, record(e, 5, nil)...)
	a, _ := Open(bytes.NewReader(arch))
	got, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "seanY" {
		t.Fatalf("name = %q, want %q", got.Name, "seanY")
	}

	long := bytes.Repeat([]byte{'n'}, nameMax)
	arch = sitHeader("SIT!", 1, 0, 1)
	arch = append(arch, record(Entry{RawName: long}, 255, nil)...)
	a, _ = Open(bytes.NewReader(arch))
	got, err = a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RawName) != nameMax {
		t.Fatalf("oversized name length: kept %d bytes, want %d", len(got.RawName), nameMax)
	}
}

func TestEntryBufferReuse(t *testing.T) {
	arch := sitHeader("SIT!", 2, 0, 1)
	arch = append(arch, fileEntry("one", "TEXT", "ttxt", nil, nil)...)
	arch = append(arch, fileEntry("two", "TEXT", "ttxt", nil, nil)...)
	a, err := Open(bytes.NewReader(arch))
	if err != nil {
		t.Fatal(err)
	}
	first, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("entries should share the session's record storage")
	}
	if second.Name != "two" {
		t.Fatalf("name = %q", second.Name)
	}
}
