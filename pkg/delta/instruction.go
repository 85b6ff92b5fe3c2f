// Package delta implements the delta builder: given a source file and a
// block store describing what the destination already owns, it produces a
// streaming instruction tape (LITERAL / KNOWN / BACKREF / ENDFILE) that,
// applied against the destination's content, reproduces the source
// byte-for-byte.
package delta

import "github.com/tridge-sync/tsync/pkg/block"

// Op identifies an instruction's kind.
type Op uint8

const (
	// OpEndFile terminates the instruction stream for one file.
	OpEndFile Op = 0
	// OpLiteral carries verbatim bytes not found in the destination's
	// inventory.
	OpLiteral Op = 1
	// OpKnown references a block by its dual hash, to be resolved against
	// the destination's own on-disk block store.
	OpKnown Op = 2
	// OpBackref references a block by its location in a file already
	// reconstructed earlier in the same delta.
	OpBackref Op = 3
)

// maxLiteralLength is the largest payload a single LITERAL instruction may
// carry; longer runs are fragmented. The wire length field is len-1 in two
// bytes, giving a range of 1..=65536.
const maxLiteralLength = 65536

// Instruction is one record of the reconstruction tape. Which fields are
// meaningful depends on Op:
//
//	OpLiteral:  Literal
//	OpKnown:    Weak, Strong
//	OpBackref:  SrcFileID, Offset, Length
//	OpEndFile:  TotalSize
type Instruction struct {
	Op        Op
	Literal   []byte
	Weak      uint32
	Strong    block.Strong
	SrcFileID uint16
	Offset    int64
	Length    uint32
	TotalSize int64
}
