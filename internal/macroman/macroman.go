// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package macroman transliterates Mac OS Roman text to 7-bit-safe ASCII.
//
// Classic archive formats store filenames in Mac OS Roman. This is a lossy,
// best-effort rendering: accented letters collapse to their nearest ASCII
// letter, typographic punctuation to its plain cousin, and everything else
// to an underscore. It is meant for display and for portable filenames, not
// for round-tripping.
package macroman

// One output byte per Mac OS Roman code point 0x80-0xFF.
// Unmapped code points are '_'.
const hiTable = "AACENOUaaaaaacee" +
	"eeiiiinooooouuuu" +
	"_______B___'____" +
	"_____ud____ao___" +
	"_____f____ AAO__" +
	"--\"\"''__yY/_<>__" +
	"_.'\"_AEAEEIIIIOO" +
	"_OUUUi^~-_.__\"__"

// Transliterate writes an ASCII rendering of src into dst, one byte per
// input byte, stopping at min(len(src), len(dst)) or at the first NUL in
// src. Control characters become '_'. It returns the number of bytes
// written and never allocates.
func Transliterate(dst, src []byte) int {
	n := min(len(src), len(dst))
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == 0:
			return i
		case c < 0x20, c == 0x7f:
			dst[i] = '_'
		case c < 0x7f:
			dst[i] = c
		default:
			dst[i] = hiTable[c-0x80]
		}
	}
	return n
}

// String is the allocating convenience form of Transliterate.
func String(src []byte) string {
	dst := make([]byte, len(src))
	return string(dst[:Transliterate(dst, src)])
}
