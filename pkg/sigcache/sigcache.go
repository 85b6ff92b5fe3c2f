// Package sigcache implements the signature cache: a persistent memoization
// of per-file block hashes keyed by (path, mtime, size), so that a file the
// indexer has already chunked and hashed on a previous run can be skipped
// entirely as long as its modification time and size haven't changed.
//
// Its absence must never change behavior, only speed: every lookup failure
// is silently treated as a cache miss, never an error.
package sigcache

import (
	"time"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/encoding"
)

// Entry is the cached signature for a single file: its key fields plus the
// sequence of (weak, strong, offset, length) blocks chunking it produced.
type Entry struct {
	Path    string        `yaml:"path"`
	ModTime time.Time     `yaml:"mod_time"`
	Size    int64         `yaml:"size"`
	Blocks  []EntryBlock  `yaml:"blocks"`
}

// EntryBlock is the serializable form of a block.Block, keyed without the
// file_id since it's implicit in the owning Entry.
type EntryBlock struct {
	Weak   uint32        `yaml:"weak"`
	Strong block.Strong  `yaml:"strong"`
	Offset int64         `yaml:"offset"`
	Length uint32        `yaml:"length"`
}

// Cache is an in-memory signature cache, persisted to and loaded from a
// single YAML file via pkg/encoding's atomic read/write helpers.
type Cache struct {
	path    string
	entries map[string]Entry
}

// Load reads a cache file at path. A missing file is not an error: it
// yields an empty, usable cache, since the cache's whole purpose is an
// optional optimization.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	var stored struct {
		Entries []Entry `yaml:"entries"`
	}
	if err := encoding.LoadAndUnmarshalYAML(path, &stored); err != nil {
		return c, nil
	}
	for _, e := range stored.Entries {
		c.entries[e.Path] = e
	}
	return c, nil
}

// Save persists the cache atomically to its backing path.
func (c *Cache) Save() error {
	stored := struct {
		Entries []Entry `yaml:"entries"`
	}{}
	for _, e := range c.entries {
		stored.Entries = append(stored.Entries, e)
	}
	return encoding.MarshalAndSaveYAML(c.path, &stored)
}

// Lookup returns the cached entry for path if its mtime and size match
// exactly. A mismatch on either field, or no entry at all, is a cache miss.
func (c *Cache) Lookup(path string, modTime time.Time, size int64) (Entry, bool) {
	entry, ok := c.entries[path]
	if !ok {
		return Entry{}, false
	}
	if !entry.ModTime.Equal(modTime) || entry.Size != size {
		return Entry{}, false
	}
	return entry, true
}

// Store records or replaces the cached entry for a file.
func (c *Cache) Store(entry Entry) {
	c.entries[entry.Path] = entry
}

// Remove drops any cached entry for path, used when housekeeping finds the
// backing file no longer exists.
func (c *Cache) Remove(path string) {
	delete(c.entries, path)
}

// Paths returns every path currently tracked by the cache, for housekeeping
// sweeps that need to check each one's continued existence.
func (c *Cache) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	return paths
}
