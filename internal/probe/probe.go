// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package probe sniffs container formats from magic bytes, unwrapping
// single-stream compression layers (gzip, bzip2, xz) so that the decoder
// behind them sees the bare archive.
package probe

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/therootcompany/xz"
)

// Kind is a detected container format.
type Kind int

const (
	Unknown Kind = iota
	BinHex
	StuffIt
	Zip
	Gzip
	Bzip2
	Xz
)

func (k Kind) String() string {
	switch k {
	case BinHex:
		return "binhex"
	case StuffIt:
		return "stuffit"
	case Zip:
		return "zip"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	}
	return "unknown"
}

// Compressed reports whether k is a bare compression layer rather than an
// archive format, i.e. whether Unwrap can see through it.
func (k Kind) Compressed() bool {
	return k == Gzip || k == Bzip2 || k == Xz
}

// binhexBanner precedes the encoded payload in nearly every BinHex file.
// Files that lost the banner in transit are still caught by the decoder's
// own header search; the probe only needs the common case.
const binhexBanner = "(This file must be converted with BinHex"

// sniffLen bounds how far Detect looks for the BinHex banner, which can
// sit after arbitrary mail headers.
const sniffLen = 4096

// Detect classifies a stream prefix. It never needs more than sniffLen
// bytes; shorter prefixes are fine and simply match less.
func Detect(header []byte) Kind {
	matchAt := func(s string, offset int) bool {
		return len(header) >= offset+len(s) && string(header[offset:offset+len(s)]) == s
	}

	switch {
	case matchAt("\x1f\x8b", 0):
		return Gzip
	case matchAt("BZh", 0):
		return Bzip2
	case matchAt("\xfd7zXZ\x00", 0):
		return Xz
	case matchAt("PK", 0):
		return Zip
	case matchAt("rLau", 10), matchAt("StuffIt (c)1997-", 0):
		return StuffIt
	case bytes.Contains(header, []byte(binhexBanner)):
		return BinHex
	}
	return Unknown
}

// Sniff classifies r without consuming it. The returned reader replays
// everything Sniff looked at, so the caller hands it straight to a decoder.
func Sniff(r io.Reader) (Kind, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	header, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Unknown, br, err
	}
	return Detect(header), br, nil
}

// Unwrap opens the decompression layer k over r. The caller sniffs the
// inner stream again, since a .sit.gz is an archive behind the wrapper.
func Unwrap(k Kind, r io.Reader) (io.Reader, error) {
	switch k {
	case Gzip:
		inner, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return inner, nil
	case Bzip2:
		return bzip2.NewReader(r), nil
	case Xz:
		inner, err := xz.NewReader(r, xz.DefaultDictMax)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return inner, nil
	}
	return nil, fmt.Errorf("%v is not a compression layer", k)
}

// InnerName guesses the name of the stream inside a compression wrapper
// from the wrapper's own filename: "disk.sit.gz" holds "disk.sit".
func InnerName(name string, k Kind) string {
	var rules string
	switch k {
	case Gzip:
		rules = ".gz .gzip .tgz=.tar"
	case Bzip2:
		rules = ".bz .bz2 .bzip2 .tbz=.tar .tb2=.tar"
	case Xz:
		rules = ".xz .txz=.tar"
	default:
		return name
	}
	for _, rule := range strings.Split(rules, " ") {
		from, to, _ := strings.Cut(rule, "=")
		if strings.HasSuffix(name, from) && len(name) > len(from) {
			return name[:len(name)-len(from)] + to
		}
	}
	return name
}
