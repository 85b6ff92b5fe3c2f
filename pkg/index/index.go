// Package index implements the indexer: it consumes a tree of files,
// performs content-defined chunking on each one, computes the dual hash of
// every resulting block, populates a block store, and can serialize the
// result as an index file.
package index

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/parallelism"
	"github.com/tridge-sync/tsync/pkg/sigcache"
	"github.com/tridge-sync/tsync/pkg/weakhash"
)

// Entry is one input to the indexer: a path relative to the tree root, a
// way to open its content, and the metadata needed to consult the
// signature cache. Entries must be supplied in the traversal order that
// should become each file's dense file_id.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	Open    func() (io.ReadCloser, error)
}

// Indexer builds a block store and file manifest from a sequence of
// entries. A nil Cache disables the signature-cache short-circuit; the
// indexer's output is identical either way, only slower without it.
type Indexer struct {
	Cache *sigcache.Cache
	// Sizes bounds the content-defined chunker. The zero value is treated
	// as chunk.DefaultSizes(), so a bare New(cache) behaves exactly as
	// before this field was added.
	Sizes chunk.Sizes
}

// New returns an Indexer, optionally backed by a signature cache, using the
// default chunk size bounds.
func New(cache *sigcache.Cache) *Indexer {
	return &Indexer{Cache: cache, Sizes: chunk.DefaultSizes()}
}

// NewWithSizes returns an Indexer using an explicit set of chunk size
// bounds — the mechanism behind the CLI's --blocksize flag.
func NewWithSizes(cache *sigcache.Cache, sizes chunk.Sizes) *Indexer {
	return &Indexer{Cache: cache, Sizes: sizes}
}

// sizes returns ix.Sizes, falling back to the package defaults for the
// zero value so a struct literal with no explicit Sizes still works.
func (ix *Indexer) sizes() chunk.Sizes {
	if ix.Sizes == (chunk.Sizes{}) {
		return chunk.DefaultSizes()
	}
	return ix.Sizes
}

// Index assigns dense file_ids from 0 in entries' order and returns the
// populated store alongside the file manifest needed to serialize an index
// file. Chunking and hashing of cache-miss files is independent per file,
// so it is fanned out across a parallelism.SIMDWorkerArray; results are
// still inserted into the store in traversal order afterward so that the
// store's weak-hash-bucket tie-break invariant (earliest (file_id, offset)
// wins) does not depend on worker scheduling.
func (ix *Indexer) Index(entries []Entry) (*block.Store, []block.File, error) {
	files := make([]block.File, len(entries))
	results := make([][]block.Block, len(entries))
	cached := make([]bool, len(entries))

	for i, entry := range entries {
		fileID := uint16(i)
		files[i] = block.File{ID: fileID, Path: entry.Path, Size: entry.Size}

		if ix.Cache != nil {
			if hit, ok := ix.Cache.Lookup(entry.Path, entry.ModTime, entry.Size); ok {
				results[i] = cachedBlocks(hit)
				cached[i] = true
			}
		}
	}

	workers := parallelism.NewSIMDWorkerArray(0)
	defer workers.Terminate()

	errs := make([]error, len(entries))
	err := workers.Do(&indexWork{ix: ix, entries: entries, cached: cached, results: results, errs: errs})
	if err != nil {
		return nil, nil, err
	}
	for i, werr := range errs {
		if werr != nil {
			return nil, nil, errors.Wrapf(werr, "unable to index %q", entries[i].Path)
		}
	}

	store := block.NewStore()
	for i, blocks := range results {
		fileID := uint16(i)
		for _, b := range blocks {
			b.FileID = fileID
			store.Insert(b)
		}
		if ix.Cache != nil && !cached[i] {
			ix.Cache.Store(cacheEntry(entries[i], blocks))
		}
	}

	return store, files, nil
}

// indexWork chunks and hashes every cache-miss entry assigned to a worker's
// stripe, writing each file's blocks into results at its own index so that
// no two workers ever touch the same slot.
type indexWork struct {
	ix      *Indexer
	entries []Entry
	cached  []bool
	results [][]block.Block
	errs    []error
}

// Do implements parallelism.SIMDWork. Each worker processes the stripe of
// entries at positions congruent to index modulo size.
func (w *indexWork) Do(index, size int) error {
	for i := index; i < len(w.entries); i += size {
		if w.cached[i] {
			continue
		}
		blocks, err := w.ix.indexFile(w.entries[i])
		if err != nil {
			w.errs[i] = err
			continue
		}
		w.results[i] = blocks
	}
	return nil
}

// indexFile chunks and hashes a single file's content. Zero-length files
// are valid and produce no blocks.
func (ix *Indexer) indexFile(entry Entry) ([]block.Block, error) {
	reader, err := entry.Open()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open file")
	}
	defer reader.Close()

	chunks, err := chunk.AllWithSizes(reader, ix.sizes())
	if err != nil {
		return nil, errors.Wrap(err, "unable to chunk file")
	}

	blocks := make([]block.Block, len(chunks))
	for i, c := range chunks {
		blocks[i] = block.Block{
			Weak:   weakhash.Init(c.Data).Sum(),
			Strong: block.Hash(c.Data),
			Offset: c.Offset,
			Length: uint32(len(c.Data)),
		}
	}
	return blocks, nil
}

// cachedBlocks converts a signature-cache entry's blocks back into
// block.Block form; the caller assigns FileID when inserting into the
// store.
func cachedBlocks(entry sigcache.Entry) []block.Block {
	blocks := make([]block.Block, len(entry.Blocks))
	for i, b := range entry.Blocks {
		blocks[i] = block.Block{Weak: b.Weak, Strong: b.Strong, Offset: b.Offset, Length: b.Length}
	}
	return blocks
}

func cacheEntry(entry Entry, blocks []block.Block) sigcache.Entry {
	cached := sigcache.Entry{
		Path:    entry.Path,
		ModTime: entry.ModTime,
		Size:    entry.Size,
		Blocks:  make([]sigcache.EntryBlock, len(blocks)),
	}
	for i, b := range blocks {
		cached.Blocks[i] = sigcache.EntryBlock{
			Weak:   b.Weak,
			Strong: b.Strong,
			Offset: b.Offset,
			Length: b.Length,
		}
	}
	return cached
}
