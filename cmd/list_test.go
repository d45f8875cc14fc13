// Copyright (c) the forklift authors
// Licensed under the MIT license

package cmd

import (
	"encoding/binary"
	"strings"
	"testing"
)

// minimal StuffIt 1.x fixture: header, folder, one file inside, end marker
func sitFixture() []byte {
	hdr := make([]byte, 22)
	copy(hdr, "SIT!")
	binary.BigEndian.PutUint16(hdr[4:], 1)
	copy(hdr[10:], "rLau")

	rec := func(rsrcComp byte, name string, dataCompLen uint32) []byte {
		b := make([]byte, 112)
		b[0] = rsrcComp
		b[2] = byte(len(name))
		copy(b[3:], name)
		copy(b[66:], "TEXT")
		copy(b[70:], "ttxt")
		binary.BigEndian.PutUint32(b[88:], dataCompLen*3) // uncompressed
		binary.BigEndian.PutUint32(b[96:], dataCompLen)
		return b
	}

	arch := hdr
	arch = append(arch, rec(32, "Games", 0)...)
	inner := rec(0, "readme.txt", 6)
	arch = append(arch, inner...)
	arch = append(arch, []byte("sixchr")...) // the skipped fork payload
	arch = append(arch, rec(33, "", 0)...)
	return arch
}

func TestRenderStuffItNesting(t *testing.T) {
	includes = nil
	s, err := listBytes(sitFixture())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "Games/") {
		t.Errorf("missing folder line:\n%s", s)
	}
	if !strings.Contains(s, "  readme.txt") {
		t.Errorf("inner file not indented:\n%s", s)
	}
	if !strings.Contains(s, "TEXT/ttxt") {
		t.Errorf("missing type/creator:\n%s", s)
	}
	if !strings.Contains(s, "1 entries, 18 bytes (6 stored, 66% saved)") {
		t.Errorf("bad footer:\n%s", s)
	}
}

func TestRenderStuffItInclude(t *testing.T) {
	includes = []string{"*.sea"}
	defer func() { includes = nil }()
	s, err := listBytes(sitFixture())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(s, "readme.txt") {
		t.Errorf("filtered entry still listed:\n%s", s)
	}
	if !strings.Contains(s, "0 entries") {
		t.Errorf("bad footer:\n%s", s)
	}
}

func TestListBytesRejectsJunk(t *testing.T) {
	if _, err := listBytes([]byte("neither fish nor fowl")); err == nil {
		t.Fatal("want error for unrecognized input")
	}
}

func TestRatio(t *testing.T) {
	for _, tc := range []struct {
		size, comp uint64
		want       string
	}{
		{100, 25, "75%"},
		{0, 0, "-"},
		{10, 10, "-"},
		{10, 20, "-"},
	} {
		if got := ratio(tc.size, tc.comp); got != tc.want {
			t.Errorf("ratio(%d, %d) = %q, want %q", tc.size, tc.comp, got, tc.want)
		}
	}
}
