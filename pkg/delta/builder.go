package delta

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/weakhash"
)

// Builder produces instruction tapes against a fixed old block store. A
// single Builder spans one sync: its self-index of already-emitted blocks
// persists across files, since BACKREFs are allowed to cross file
// boundaries, and is only discarded when the Builder itself is.
type Builder struct {
	old       *block.Store
	sizes     chunk.Sizes
	selfIndex *block.Store
}

// NewBuilder returns a Builder that matches against old by re-cutting the
// source with the same content-defined chunking target average, blockSize,
// used to build old. Candidate blocks are only ever compared against old's
// entries when both were cut by the identical boundary test, since old's
// blocks are variable-length (pkg/index chunks with pkg/chunk, not a fixed
// stride) and a probe window of any other width or offset will essentially
// never confirm against them.
func NewBuilder(old *block.Store, blockSize uint32) *Builder {
	return &Builder{old: old, sizes: chunk.SizesFromTarget(int(blockSize)), selfIndex: block.NewStore()}
}

// BuildFile streams r (the source file assigned fileID), cutting it into
// content-defined blocks with the same boundary test pkg/chunk uses, and
// returns the resulting instruction tape, terminated by an OpEndFile
// instruction carrying the file's total size.
//
// Because the cut points depend only on local content rather than
// position, an edit to the source perturbs only the blocks adjacent to it:
// once the scan resynchronizes past an edit, it reproduces the same cut
// points — and so the same weak/strong hashes — that old's indexer found
// over unmodified content. r is read one chunk (at most sizes.Max bytes)
// at a time rather than in full up front, but the tape itself is built in
// memory: every instruction, including each LITERAL's bytes, is held in
// the returned slice until BuildFile returns.
//
// fileID must be assigned in the same traversal order used when reporting
// BACKREFs, since a BACKREF's src_file_id is only meaningful relative to
// files already reconstructed earlier in the delta.
func (b *Builder) BuildFile(fileID uint16, r io.Reader) ([]Instruction, error) {
	chunker := chunk.NewChunkerWithSizes(r, b.sizes)

	var instructions []Instruction
	var pos int64

	for {
		c, err := chunker.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "unable to chunk source file")
		}

		weak := weakhash.Init(c.Data).Sum()
		strong := block.Hash(c.Data)

		if !matchStrong(b.old.Lookup(weak), strong) {
			// Weak-hash miss, or a collision the strong hash didn't
			// confirm: this block is not in old. Emit it verbatim; the
			// next cut may still resynchronize against old further on.
			instructions = append(instructions, literalInstructions(c.Data)...)
			pos += int64(len(c.Data))
			continue
		}

		if self, ok := b.selfIndex.ContainsStrong(weak, strong); ok {
			instructions = append(instructions, Instruction{
				Op:        OpBackref,
				SrcFileID: self.FileID,
				Offset:    self.Offset,
				Length:    self.Length,
			})
		} else {
			instructions = append(instructions, Instruction{
				Op:     OpKnown,
				Weak:   weak,
				Strong: strong,
			})
		}

		b.selfIndex.Insert(block.Block{
			Weak:   weak,
			Strong: strong,
			FileID: fileID,
			Offset: pos,
			Length: uint32(len(c.Data)),
		})

		pos += int64(len(c.Data))
	}

	instructions = append(instructions, Instruction{Op: OpEndFile, TotalSize: pos})

	return instructions, nil
}

// matchStrong reports whether any block in a weak-hash bucket confirms the
// match via its strong hash, per the index's ordering invariant: the first
// matching entry in the bucket wins (here, any match suffices, since every
// confirmed match in the bucket shares the same content with overwhelming
// probability).
func matchStrong(bucket []block.Block, strong block.Strong) bool {
	for _, candidate := range bucket {
		if candidate.Strong == strong {
			return true
		}
	}
	return false
}

// literalInstructions fragments data into LITERAL instructions no larger
// than maxLiteralLength each.
func literalInstructions(data []byte) []Instruction {
	if len(data) == 0 {
		return nil
	}
	var out []Instruction
	for len(data) > 0 {
		n := len(data)
		if n > maxLiteralLength {
			n = maxLiteralLength
		}
		fragment := make([]byte, n)
		copy(fragment, data[:n])
		out = append(out, Instruction{Op: OpLiteral, Literal: fragment})
		data = data[n:]
	}
	return out
}
