// Copyright (c) the forklift authors
// Licensed under the MIT license

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/svema/forklift/internal/binhex"
	"github.com/svema/forklift/internal/probe"
)

var (
	outDir   string
	listOnly bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <archive.hqx>",
	Short: "Decode a BinHex 4.0 file into its data and resource forks",
	Long: `Decodes a BinHex 4.0 stream: the data fork is written under the
file's own name, and a non-empty resource fork beside it as "._name".
Both fork checksums are verified. Reads stdin when the archive is "-".

	ex:
	forklift extract letter.hqx
	forklift extract -d unpacked/ letter.hqx
	forklift extract -n letter.hqx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r, closer, err := openEncoded(name)
		if err != nil {
			return err
		}
		defer closer()

		f, err := binhex.Open(r)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		hdr := f.Header()
		log.Debugf("%s: %q type %q creator %q data %d rsrc %d",
			name, hdr.Name, hdr.Type[:], hdr.Creator[:], hdr.DataLen, hdr.RsrcLen)

		if listOnly {
			fmt.Printf("%s: %s (%d data, %d resource bytes)\n",
				name, hdr.Name, hdr.DataLen, hdr.RsrcLen)
			return nil
		}

		dataName := filepath.Join(outDir, hdr.Name)
		if err := writeFork(dataName, f.ReadDataFork); err != nil {
			return fmt.Errorf("data fork: %w", err)
		}
		fmt.Println(dataName)

		// An empty resource fork leaves no AppleDouble file behind.
		if hdr.RsrcLen > 0 {
			rsrcName := filepath.Join(outDir, "._"+hdr.Name)
			if err := writeFork(rsrcName, f.ReadResourceFork); err != nil {
				return fmt.Errorf("resource fork: %w", err)
			}
			fmt.Println(rsrcName)
		} else if err := f.ReadResourceFork(io.Discard); err != nil {
			return fmt.Errorf("resource fork: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&outDir, "directory", "d", ".", "directory to extract into")
	extractCmd.Flags().BoolVarP(&listOnly, "dry-run", "n", false, "print what would be extracted without writing")
}

// openEncoded opens the named file (or stdin) and strips at most one
// compression wrapper, handing back a plain stream for the decoder.
func openEncoded(name string) (io.Reader, func() error, error) {
	var raw io.Reader
	closer := func() error { return nil }
	if name == "-" {
		raw = os.Stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}
		raw = f
		closer = f.Close
	}

	kind, r, err := probe.Sniff(raw)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if !kind.Compressed() {
		return r, closer, nil
	}

	inner, err := probe.Unwrap(kind, r)
	if err != nil {
		closer()
		return nil, nil, err
	}
	data, err := io.ReadAll(inner)
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("unwrapping %v layer: %w", kind, err)
	}
	log.Debugf("%s: unwrapped %v to %d bytes", name, kind, len(data))
	return bytes.NewReader(data), closer, nil
}

func writeFork(name string, read func(io.Writer) error) error {
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := read(out); err != nil {
		out.Close()
		os.Remove(name) // do not leave a torso with a bad checksum
		return err
	}
	return out.Close()
}
