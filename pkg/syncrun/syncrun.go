// Package syncrun wires the core engine packages (index, delta, patch,
// block, sigcache) into the handful of whole-tree operations the CLI
// exposes: building an index file for a path, diffing a path against a
// destination index, and applying a delta back onto a path. It contains no
// wire-protocol or transport logic of its own; pkg/protocol and pkg/endpoint
// handle moving the resulting bytes between peers.
package syncrun

import (
	"crypto/sha1"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/index"
	"github.com/tridge-sync/tsync/pkg/patch"
	"github.com/tridge-sync/tsync/pkg/sigcache"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// Tree resolves a CLI path argument to the entries index.Walk discovers
// beneath it, remembering whether the argument named a single regular file
// (single-file wire convention) or a directory (directory-mode manifest,
// entries addressed by relative path).
type Tree struct {
	Root    string
	Single  bool
	Entries []index.Entry
}

// OpenTree walks root and classifies it as single-file or directory mode
// based on its current on-disk type.
func OpenTree(root string) (*Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to stat %q", root))
	}
	entries, err := index.Walk(root)
	if err != nil {
		return nil, tsyncerrors.IO(err)
	}
	return &Tree{Root: root, Single: !info.IsDir(), Entries: entries}, nil
}

// BuildIndex indexes tree's entries, optionally consulting cache, and
// returns the resulting Index along with the store it was built from (the
// caller needs both: the Index for serialization, the Store for immediate
// in-process use without a round trip through the wire format). If verify
// is set, a whole-file SHA-1 is additionally recorded for every entry so a
// later patch --verify pass can confirm reconstruction.
func BuildIndex(tree *Tree, cache *sigcache.Cache, sizes chunk.Sizes, verify bool) (*block.Index, *block.Store, error) {
	indexer := index.NewWithSizes(cache, sizes)
	store, files, err := indexer.Index(tree.Entries)
	if err != nil {
		return nil, nil, tsyncerrors.IO(err)
	}

	idx := block.BuildIndex(uint32(sizes.Avg), files, store)

	if verify {
		digests, err := wholeFileDigests(tree.Entries)
		if err != nil {
			return nil, nil, err
		}
		idx.Digests = digests
	}

	return idx, store, nil
}

// wholeFileDigests computes a whole-file SHA-1 for every entry, keyed by
// its dense file_id (its position in entries).
func wholeFileDigests(entries []index.Entry) ([]block.FileDigest, error) {
	digests := make([]block.FileDigest, len(entries))
	for i, entry := range entries {
		reader, err := entry.Open()
		if err != nil {
			return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to open %q for digest", entry.Path))
		}
		hasher := sha1.New()
		_, err = io.Copy(hasher, reader)
		reader.Close()
		if err != nil {
			return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to digest %q", entry.Path))
		}
		var digest block.Strong
		copy(digest[:], hasher.Sum(nil))
		digests[i] = block.FileDigest{FileID: uint16(i), Digest: digest}
	}
	return digests, nil
}

// BuildDelta streams every entry in newTree through a delta.Builder
// matching against old, producing one instruction tape per entry in
// traversal order. blockSize must be the old index's blocksize, since the
// builder re-derives the same chunk.Sizes from it to re-cut each source
// file, and that cut only agrees with how old's blocks were hashed if the
// target average matches.
func BuildDelta(newTree *Tree, old *block.Store, blockSize uint32) ([]delta.File, error) {
	builder := delta.NewBuilder(old, blockSize)
	files := make([]delta.File, len(newTree.Entries))

	for i, entry := range newTree.Entries {
		reader, err := entry.Open()
		if err != nil {
			return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to open %q", entry.Path))
		}
		instructions, err := builder.BuildFile(uint16(i), reader)
		reader.Close()
		if err != nil {
			return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to build delta for %q", entry.Path))
		}
		files[i] = delta.File{Name: entry.Path, Instructions: instructions}
	}

	return files, nil
}

// ApplyDelta replays files (in traversal order, matching the file_ids the
// tape's BACKREFs refer to) against outputRoot, resolving KNOWN
// instructions via resolver. If outputRoot names a single file (per
// single), all files must be a single entry written directly to
// outputRoot; otherwise each file is written beneath outputRoot at its
// recorded relative name. If digests is non-nil, per-file whole-file
// verification is additionally performed wherever a digest was recorded
// for that file_id.
func ApplyDelta(outputRoot string, single bool, files []delta.File, resolver patch.KnownResolver, digests *block.Index) error {
	if single && len(files) != 1 {
		return tsyncerrors.Format(errors.Errorf("single-file delta must contain exactly one file, got %d", len(files)))
	}

	applier := patch.NewApplier(resolver)
	for i, file := range files {
		outputPath := outputRoot
		if !single {
			outputPath = filepath.Join(outputRoot, filepath.FromSlash(file.Name))
			if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return tsyncerrors.IO(errors.Wrapf(err, "unable to create directory for %q", file.Name))
			}
		}

		var expectedDigest []byte
		if digests != nil {
			if digest, ok := digests.DigestFor(uint16(i)); ok {
				d := digest
				expectedDigest = d[:]
			}
		}

		if err := applier.ApplyFile(uint16(i), outputPath, file.Instructions, expectedDigest); err != nil {
			return errors.Wrapf(err, "unable to apply delta for %q", outputPath)
		}
	}
	return nil
}

// OutputPaths maps every file_id in tree to its on-disk path, for use by
// patch.NewStoreResolver when resolving KNOWN blocks against a tree's own
// index.
func OutputPaths(tree *Tree) map[uint16]string {
	paths := make(map[uint16]string, len(tree.Entries))
	for i, entry := range tree.Entries {
		if tree.Single {
			paths[uint16(i)] = tree.Root
		} else {
			paths[uint16(i)] = filepath.Join(tree.Root, filepath.FromSlash(entry.Path))
		}
	}
	return paths
}
