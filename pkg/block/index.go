package block

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// magic identifies an index file.
var magic = [8]byte{'R', 'S', '-', 'S', 'Y', 'N', 'C', 'I'}

// Version is the index file format version written by this package. It
// carries an explicit length alongside each hash entry, since this
// engine's blocks are content-defined and therefore not uniformly sized;
// the original fixed-blocksize table layout is not sufficient to
// reconstruct block boundaries on its own.
const Version uint16 = 2

// Manifest records, for one indexed file, the range of hash-table entries
// (by index, inclusive start / exclusive end) that belong to it. It is the
// directory-mode extension to the index file format: in single-file mode
// the manifest holds exactly one entry.
type Manifest struct {
	Path      string
	FileID    uint16
	Size      int64
	HashStart uint32
	HashEnd   uint32
}

// Index is the fully decoded contents of an index file: the target block
// size it was built with, the per-file manifest, the flat hash table in
// traversal order, and an optional trailer of whole-file digests.
type Index struct {
	BlockSize uint32
	Files     []Manifest
	Hashes    []hashEntry
	Digests   []FileDigest
}

// FileDigest is a whole-file SHA-1 recorded for one file_id, consumed by
// the patch applier's optional --verify pass. Its absence is not an
// error: a file with no recorded digest is simply never
// whole-file-verified.
type FileDigest struct {
	FileID uint16
	Digest Strong
}

// DigestFor looks up the recorded whole-file digest for fileID, if any.
func (idx *Index) DigestFor(fileID uint16) (Strong, bool) {
	for _, d := range idx.Digests {
		if d.FileID == fileID {
			return d.Digest, true
		}
	}
	return Strong{}, false
}

// hashEntry is one block's dual hash and length as it appears in the hash
// table, without the file/offset context that Block carries — that context
// lives in the manifest and is reconstructed by Store.
type hashEntry struct {
	Weak   uint32
	Strong Strong
	Length uint32
}

// BuildIndex assembles an Index from a store and the ordered file list the
// indexer produced. Blocks are re-sorted by (file_id, offset) as required
// by the index's ordering invariant, regardless of the order Store.All
// returns them in.
func BuildIndex(blockSize uint32, files []File, store *Store) *Index {
	all := store.All()
	sortBlocksByFileOffset(all)

	idx := &Index{BlockSize: blockSize}
	idx.Hashes = make([]hashEntry, len(all))
	for i, b := range all {
		idx.Hashes[i] = hashEntry{Weak: b.Weak, Strong: b.Strong, Length: b.Length}
	}

	offsetsByFile := make(map[uint16][2]uint32)
	for i, b := range all {
		r, ok := offsetsByFile[b.FileID]
		if !ok {
			offsetsByFile[b.FileID] = [2]uint32{uint32(i), uint32(i + 1)}
			continue
		}
		r[1] = uint32(i + 1)
		offsetsByFile[b.FileID] = r
	}

	for _, f := range files {
		r := offsetsByFile[f.ID]
		idx.Files = append(idx.Files, Manifest{
			Path:      f.Path,
			FileID:    f.ID,
			Size:      f.Size,
			HashStart: r[0],
			HashEnd:   r[1],
		})
	}
	return idx
}

func sortBlocksByFileOffset(blocks []Block) {
	// Insertion sort is adequate here: blocks arrive already close to
	// sorted (one file at a time, in offset order), so this is close to
	// linear in practice and avoids pulling in sort for a handful of
	// comparisons per file.
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && less(blocks[j], blocks[j-1]); j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}
}

func less(a, b Block) bool {
	if a.FileID != b.FileID {
		return a.FileID < b.FileID
	}
	return a.Offset < b.Offset
}

// Store rebuilds a Store from the index's flat hash table, restoring the
// file_id/offset context from the manifest and the per-entry length.
func (idx *Index) Store() *Store {
	store := NewStore()
	for _, m := range idx.Files {
		offset := int64(0)
		for i := m.HashStart; i < m.HashEnd; i++ {
			h := idx.Hashes[i]
			store.Insert(Block{
				Weak:   h.Weak,
				Strong: h.Strong,
				FileID: m.FileID,
				Offset: offset,
				Length: h.Length,
			})
			offset += int64(h.Length)
		}
	}
	return store
}

// Write serializes idx to w in the format described by spec §6.1 (as
// amended for content-defined block lengths), with the directory-mode
// manifest preceding the hash table.
func Write(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return errors.Wrap(err, "unable to write magic")
	}
	if err := binary.Write(bw, binary.BigEndian, Version); err != nil {
		return errors.Wrap(err, "unable to write version")
	}
	if err := binary.Write(bw, binary.BigEndian, idx.BlockSize); err != nil {
		return errors.Wrap(err, "unable to write blocksize")
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(idx.Files))); err != nil {
		return errors.Wrap(err, "unable to write file count")
	}
	for _, m := range idx.Files {
		if err := writeManifestEntry(bw, m); err != nil {
			return errors.Wrap(err, "unable to write manifest entry")
		}
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(idx.Hashes))); err != nil {
		return errors.Wrap(err, "unable to write hash count")
	}
	for _, h := range idx.Hashes {
		if err := binary.Write(bw, binary.BigEndian, h.Weak); err != nil {
			return errors.Wrap(err, "unable to write weak hash")
		}
		if _, err := bw.Write(h.Strong[:]); err != nil {
			return errors.Wrap(err, "unable to write strong hash")
		}
		if err := binary.Write(bw, binary.BigEndian, h.Length); err != nil {
			return errors.Wrap(err, "unable to write block length")
		}
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(idx.Digests))); err != nil {
		return errors.Wrap(err, "unable to write digest count")
	}
	for _, d := range idx.Digests {
		if err := binary.Write(bw, binary.BigEndian, d.FileID); err != nil {
			return errors.Wrap(err, "unable to write digest file id")
		}
		if _, err := bw.Write(d.Digest[:]); err != nil {
			return errors.Wrap(err, "unable to write digest")
		}
	}

	return bw.Flush()
}

func writeManifestEntry(w io.Writer, m Manifest) error {
	pathBytes := []byte(m.Path)
	if err := binary.Write(w, binary.BigEndian, uint16(len(pathBytes))); err != nil {
		return err
	}
	if _, err := w.Write(pathBytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.FileID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Size); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.HashStart); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, m.HashEnd)
}

// Read deserializes an index file from r.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	var gotMagic [8]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, errors.Wrap(err, "unable to read magic")
	}
	if gotMagic != magic {
		return nil, errors.Errorf("bad index magic: %q", gotMagic)
	}

	var version uint16
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return nil, errors.Wrap(err, "unable to read version")
	}
	if version != Version {
		return nil, errors.Errorf("unsupported index version: %d", version)
	}

	idx := &Index{}
	if err := binary.Read(br, binary.BigEndian, &idx.BlockSize); err != nil {
		return nil, errors.Wrap(err, "unable to read blocksize")
	}

	var nFiles uint32
	if err := binary.Read(br, binary.BigEndian, &nFiles); err != nil {
		return nil, errors.Wrap(err, "unable to read file count")
	}
	idx.Files = make([]Manifest, nFiles)
	for i := range idx.Files {
		m, err := readManifestEntry(br)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read manifest entry")
		}
		idx.Files[i] = m
	}

	var nHashes uint32
	if err := binary.Read(br, binary.BigEndian, &nHashes); err != nil {
		return nil, errors.Wrap(err, "unable to read hash count")
	}
	idx.Hashes = make([]hashEntry, nHashes)
	for i := range idx.Hashes {
		if err := binary.Read(br, binary.BigEndian, &idx.Hashes[i].Weak); err != nil {
			return nil, errors.Wrap(err, "unable to read weak hash")
		}
		if _, err := io.ReadFull(br, idx.Hashes[i].Strong[:]); err != nil {
			return nil, errors.Wrap(err, "unable to read strong hash")
		}
		if err := binary.Read(br, binary.BigEndian, &idx.Hashes[i].Length); err != nil {
			return nil, errors.Wrap(err, "unable to read block length")
		}
	}

	var nDigests uint32
	if err := binary.Read(br, binary.BigEndian, &nDigests); err != nil {
		return nil, errors.Wrap(err, "unable to read digest count")
	}
	idx.Digests = make([]FileDigest, nDigests)
	for i := range idx.Digests {
		if err := binary.Read(br, binary.BigEndian, &idx.Digests[i].FileID); err != nil {
			return nil, errors.Wrap(err, "unable to read digest file id")
		}
		if _, err := io.ReadFull(br, idx.Digests[i].Digest[:]); err != nil {
			return nil, errors.Wrap(err, "unable to read digest")
		}
	}

	return idx, nil
}

func readManifestEntry(r io.Reader) (Manifest, error) {
	var pathLen uint16
	if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
		return Manifest{}, err
	}
	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBytes); err != nil {
		return Manifest{}, err
	}

	var m Manifest
	m.Path = string(pathBytes)
	if err := binary.Read(r, binary.BigEndian, &m.FileID); err != nil {
		return Manifest{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &m.Size); err != nil {
		return Manifest{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &m.HashStart); err != nil {
		return Manifest{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &m.HashEnd); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
