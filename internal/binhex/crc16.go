// Copyright (c) the forklift authors
// Licensed under the MIT license

package binhex

const crcPoly = 0x1021 // CCITT

// updateCRC folds one byte into the running checksum, feeding the input bits
// into the low end of the register as it shifts (the "augmented" bitwise
// form used by the original BinHex implementation). The stored CRC fields
// are themselves checksummed as zero, which supplies the 16 bits of
// augmentation, so the running value compares directly against the stream.
func (f *File) updateCRC(c byte) {
	crc := f.crc
	for range 8 {
		top := crc & 0x8000
		crc = crc<<1 | uint16(c>>7)
		if top != 0 {
			crc ^= crcPoly
		}
		c <<= 1
	}
	f.crc = crc
}
