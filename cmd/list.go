// Copyright (c) the forklift authors
// Licensed under the MIT license

package cmd

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/svema/forklift/internal/binhex"
	"github.com/svema/forklift/internal/fileid"
	"github.com/svema/forklift/internal/listcache"
	"github.com/svema/forklift/internal/probe"
	"github.com/svema/forklift/internal/sit"
)

var (
	includes []string
	noCache  bool
)

var listCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List the entries of an archive",
	Long: `Prints one line per archive entry: name, Mac type/creator codes,
Finder flags, sizes and modification time, with folders rendered by
indentation and a totals footer. Reads stdin when the archive is "-".

	ex:
	forklift list game.sit
	forklift list --include '**/*.txt' backup.sit
	forklift list letter.hqx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		render := func() (string, error) { return listArchive(name) }

		// Cached listings are unfiltered; --include changes the text.
		useCache := !noCache && len(includes) == 0 && name != "-"
		if useCache {
			if id, err := fileid.Get(name); err == nil {
				cache := listcache.Open(cacheDir())
				defer cache.Close()
				s, err := cache.Get(id, render)
				if err != nil {
					return err
				}
				fmt.Print(s)
				return nil
			} else {
				log.Debugf("no cache key for %s: %v", name, err)
			}
		}

		s, err := render()
		if err != nil {
			return err
		}
		fmt.Print(s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringSliceVarP(&includes, "include", "i", nil, "glob pattern(s) to filter entries (doublestar, e.g. '**/*.txt')")
	listCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the listing cache")
}

func cacheDir() string {
	if dir := viper.GetString("cachedir"); dir != "" {
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(os.TempDir(), "forklift-cache")
	}
	return filepath.Join(home, ".cache", "forklift", "listings")
}

func included(name string) bool {
	if len(includes) == 0 {
		return true
	}
	for _, pat := range includes {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// listArchive classifies the input, strips at most one compression
// wrapper, and renders the listing for whatever is underneath.
func listArchive(name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return listBytes(data)
	}

	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	kind, r, err := probe.Sniff(f)
	if err != nil {
		return "", err
	}
	log.Debugf("%s: detected %v", name, kind)

	switch {
	case kind.Compressed():
		inner, err := probe.Unwrap(kind, r)
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(inner)
		if err != nil {
			return "", fmt.Errorf("unwrapping %v layer: %w", kind, err)
		}
		log.Debugf("%s: unwrapped %v to %d bytes (%s)", name, kind, len(data), probe.InnerName(filepath.Base(name), kind))
		return listBytes(data)
	case kind == probe.BinHex:
		return renderBinHex(r)
	case kind == probe.StuffIt:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		return renderStuffIt(f)
	case kind == probe.Zip:
		st, err := f.Stat()
		if err != nil {
			return "", err
		}
		return renderZip(f, st.Size())
	}
	return "", fmt.Errorf("%s: unrecognized archive format", name)
}

func listBytes(data []byte) (string, error) {
	kind := probe.Detect(data)
	switch {
	case kind.Compressed():
		return "", fmt.Errorf("refusing to unwrap nested %v layer", kind)
	case kind == probe.BinHex:
		return renderBinHex(bytes.NewReader(data))
	case kind == probe.StuffIt:
		return renderStuffIt(bytes.NewReader(data))
	case kind == probe.Zip:
		return renderZip(bytes.NewReader(data), int64(len(data)))
	}
	return "", fmt.Errorf("unrecognized archive format")
}

// One row of the listing. Folders get a trailing slash and no numbers.
func entryLine(b *strings.Builder, depth int, name, typecrea string, size, comp uint64, mod time.Time) {
	indent := strings.Repeat("  ", depth)
	when := ""
	if !mod.IsZero() {
		when = mod.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(b, "%-40s %-9s %9d %9d %4s %s\n",
		indent+name, typecrea, size, comp, ratio(size, comp), when)
}

func ratio(size, comp uint64) string {
	if size == 0 || comp >= size {
		return "-"
	}
	return fmt.Sprintf("%d%%", (size-comp)*100/size)
}

func listHeader(b *strings.Builder) {
	fmt.Fprintf(b, "%-40s %-9s %9s %9s %4s %s\n",
		"name", "type/crea", "size", "stored", "save", "modified")
}

func listFooter(b *strings.Builder, entries int, size, comp uint64) {
	fmt.Fprintf(b, "%d entries, %d bytes (%d stored, %s saved)\n",
		entries, size, comp, ratio(size, comp))
}

func renderStuffIt(r io.ReadSeeker) (string, error) {
	a, err := sit.Open(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	listHeader(&b)

	var entries int
	var size, comp uint64
	depth := 0
	for {
		e, err := a.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch {
		case e.IsFolderStart():
			entryLine(&b, depth, e.Name+"/", "", 0, 0, time.Time{})
			depth++
		case e.IsFolderEnd():
			if depth > 0 {
				depth--
			}
		default:
			if !included(e.Name) {
				continue
			}
			note := ""
			if e.IsEncrypted() {
				note = "????/???? (encrypted)"
			} else {
				note = string(e.Type[:]) + "/" + string(e.Creator[:])
			}
			entryLine(&b, depth, e.Name, note, e.UncompressedSize(), e.CompressedSize(), e.ModTime())
			entries++
			size += e.UncompressedSize()
			comp += e.CompressedSize()
		}
	}
	listFooter(&b, entries, size, comp)
	return b.String(), nil
}

// renderBinHex prints the single encoded file and then decodes both
// forks to verify their checksums, since a listing is the only chance
// to catch transfer damage before extraction.
func renderBinHex(r io.Reader) (string, error) {
	f, err := binhex.Open(r)
	if err != nil {
		return "", err
	}
	hdr := f.Header()

	var b strings.Builder
	listHeader(&b)
	if included(hdr.Name) {
		tc := string(hdr.Type[:]) + "/" + string(hdr.Creator[:])
		entryLine(&b, 0, hdr.Name, tc, uint64(hdr.DataLen), uint64(hdr.DataLen), time.Time{})
		if hdr.RsrcLen > 0 {
			entryLine(&b, 0, "._"+hdr.Name, "rsrc", uint64(hdr.RsrcLen), uint64(hdr.RsrcLen), time.Time{})
		}
	}

	if err := f.ReadDataFork(io.Discard); err != nil {
		return "", fmt.Errorf("data fork: %w", err)
	}
	if err := f.ReadResourceFork(io.Discard); err != nil {
		return "", fmt.Errorf("resource fork: %w", err)
	}

	listFooter(&b, 1, uint64(hdr.DataLen)+uint64(hdr.RsrcLen), uint64(hdr.DataLen)+uint64(hdr.RsrcLen))
	return b.String(), nil
}

func renderZip(r io.ReaderAt, size int64) (string, error) {
	z, err := zip.NewReader(r, size)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	listHeader(&b)
	var entries int
	var total, comp uint64
	for _, f := range z.File {
		if strings.HasSuffix(f.Name, "/") {
			entryLine(&b, 0, f.Name, "", 0, 0, time.Time{})
			continue
		}
		if !included(f.Name) {
			continue
		}
		entryLine(&b, 0, f.Name, "", f.UncompressedSize64, f.CompressedSize64, f.Modified)
		entries++
		total += f.UncompressedSize64
		comp += f.CompressedSize64
	}
	listFooter(&b, entries, total, comp)
	return b.String(), nil
}
