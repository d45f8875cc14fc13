// Copyright (c) the forklift authors
// Licensed under the MIT license

package binhex

// Alphabet is the 64-character digit set of BinHex 4.0, in value order.
// It was chosen by the format's author to survive 7-bit mail gateways.
const Alphabet = "!\"#$%&'()*+,-012345689@ABCDEFGHIJKLMNPQRSTUVXYZ[`abcdefhijklmpqr"

// sixBitTable maps a raw stream byte to its 6-bit value, or -1 for bytes
// outside the alphabet. A table avoids a sentinel clash with value 0 ('!').
var sixBitTable [256]int8

func init() {
	for i := range sixBitTable {
		sixBitTable[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		sixBitTable[Alphabet[i]] = int8(i)
	}
}
