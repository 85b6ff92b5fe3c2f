// Package block implements the dual-hash block store and index: the
// associative structure keyed by (weak_hash, strong_hash) that the delta
// builder probes to decide whether a byte range of the source is already
// present at the destination, and the binary index file format used to
// persist it.
package block

import "crypto/sha1"

// WeakSize is the width, in bytes, of the serialized weak hash.
const WeakSize = 4

// StrongSize is the width, in bytes, of the serialized strong hash (SHA-1).
const StrongSize = sha1.Size

// Strong is a SHA-1 digest confirming a weak-hash match.
type Strong [StrongSize]byte

// Hash computes the strong hash of data.
func Hash(data []byte) Strong {
	return Strong(sha1.Sum(data))
}

// Block is a single content-defined chunk recorded in a block store: its
// dual hash, the file it belongs to, and its byte range within that file.
type Block struct {
	Weak     uint32
	Strong   Strong
	FileID   uint16
	Offset   int64
	Length   uint32
}

// File is the traversal-order entry for one indexed file: its relative path
// and the dense ordinal assigned to it by the indexer.
type File struct {
	ID   uint16
	Path string
	Size int64
}
