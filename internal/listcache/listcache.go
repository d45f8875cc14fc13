// Copyright (c) the forklift authors
// Licensed under the MIT license

// Package listcache keeps rendered archive listings between runs, so
// that re-listing a large archive costs one stat instead of a decode.
// A pebble database holds the listings on disk; a small tinylfu cache
// in front of it absorbs repeat lookups within one process.
//
// Every failure here is soft. A missing, locked or corrupt cache means
// the listing is rendered again, never that the listing fails.
package listcache

import (
	"hash/maphash"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/svema/forklift/internal/fileid"
)

const memEntries = 64

var seed = maphash.MakeSeed()

func idHash(k fileid.ID) uint64 { return maphash.Comparable(seed, k) }

type Cache struct {
	mu  sync.Mutex
	db  *pebble.DB // nil when the store could not be opened
	mem *tinylfu.T[fileid.ID, string]
}

// Open opens (or creates) the on-disk store at dir. An unusable store
// degrades to memory-only caching rather than failing.
func Open(dir string) *Cache {
	c := &Cache{
		mem: tinylfu.New[fileid.ID, string](memEntries, memEntries*10, idHash),
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		slog.Debug("listing cache unavailable", "dir", dir, "error", err)
		return c
	}
	c.db = db
	return c
}

func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

// Get returns the cached listing for id, calling render on a miss and
// storing its result. A render error is returned as-is and not cached.
func (c *Cache) Get(id fileid.ID, render func() (string, error)) (string, error) {
	c.mu.Lock()
	if s, ok := c.mem.Get(id); ok && s != "" {
		c.mu.Unlock()
		return s, nil
	}
	if c.db != nil {
		val, closer, err := c.db.Get(id[:])
		switch {
		case err == nil:
			s := string(val)
			closer.Close()
			if s != "" {
				c.mem.Add(id, s)
				c.mu.Unlock()
				return s, nil
			}
		case err != pebble.ErrNotFound:
			slog.Debug("listing cache read failed", "id", id, "error", err)
		}
	}
	c.mu.Unlock()

	s, err := render()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.mem.Add(id, s)
	if c.db != nil {
		if err := c.db.Set(id[:], []byte(s), pebble.NoSync); err != nil {
			slog.Debug("listing cache write failed", "id", id, "error", err)
		}
	}
	c.mu.Unlock()
	return s, nil
}

// Drop forgets one listing, for when the caller knows it is stale.
func (c *Cache) Drop(id fileid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Add(id, "") // tinylfu has no removal; an empty value is never served
	if c.db != nil {
		c.db.Delete(id[:], pebble.NoSync)
	}
}
