// Package patch implements the patch applier: it reads an instruction tape
// produced by pkg/delta and writes a new file, resolving KNOWN references
// against the local block store and BACKREFs against files already
// reconstructed earlier in the same run.
package patch

import (
	"bufio"
	"crypto/sha1"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/stream"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// KnownResolver resolves a KNOWN instruction to the block's bytes, typically
// by reading from the destination's own on-disk files via its block store.
type KnownResolver interface {
	ResolveKnown(weak uint32, strong block.Strong) ([]byte, error)
}

// Applier applies instruction tapes in traversal order, writing each file
// atomically and retaining enough state to resolve BACKREFs against files
// it has already committed in this run.
type Applier struct {
	known   KnownResolver
	outputs map[uint16]string
}

// NewApplier returns an Applier that resolves KNOWN instructions via known.
func NewApplier(known KnownResolver) *Applier {
	return &Applier{known: known, outputs: make(map[uint16]string)}
}

// ApplyFile writes outputPath by replaying instructions, which must belong
// to fileID — the same dense identifier the indexer and delta builder
// agreed on. If expectedDigest is non-nil, the applier additionally
// verifies a running SHA-1 of the emitted bytes against it, failing with a
// VerifyError on mismatch (the opt-in whole-file verification feature).
//
// Output is written to a temporary file adjacent to outputPath and renamed
// into place only once every instruction has been applied successfully and
// the ENDFILE length check has passed; any error leaves outputPath
// untouched and discards the temporary file.
func (a *Applier) ApplyFile(fileID uint16, outputPath string, instructions []delta.Instruction, expectedDigest []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(outputPath), ".tsync-patch-*")
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to create temporary output file"))
	}
	tempPath := temporary.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			temporary.Close()
			os.Remove(tempPath)
		}
	}()

	// Buffer writes to the temporary file: the instruction tape tends to
	// emit many small literal/known/backref chunks, and a bufio.Writer
	// collapses those into far fewer underlying syscalls. closer flushes
	// the buffer before closing the file it sits atop, in that order.
	buffered := bufio.NewWriter(temporary)
	closer := stream.NewMultiCloser(stream.NewFlushCloser(buffered), temporary)

	var writer io.Writer = buffered
	var hasher = sha1.New()
	if expectedDigest != nil {
		writer = stream.NewHashedWriter(buffered, hasher)
	}

	var written int64
	var endfileSeen bool
	for _, instr := range instructions {
		switch instr.Op {
		case delta.OpLiteral:
			n, err := writer.Write(instr.Literal)
			written += int64(n)
			if err != nil {
				return tsyncerrors.IO(errors.Wrap(err, "unable to write literal data"))
			}
		case delta.OpKnown:
			data, err := a.known.ResolveKnown(instr.Weak, instr.Strong)
			if err != nil {
				return tsyncerrors.Verify(errors.Wrap(err, "unable to resolve known block"))
			}
			n, err := writer.Write(data)
			written += int64(n)
			if err != nil {
				return tsyncerrors.IO(errors.Wrap(err, "unable to write known block"))
			}
		case delta.OpBackref:
			data, err := a.resolveBackref(fileID, instr.SrcFileID, instr.Offset, instr.Length)
			if err != nil {
				return err
			}
			n, err := writer.Write(data)
			written += int64(n)
			if err != nil {
				return tsyncerrors.IO(errors.Wrap(err, "unable to write backref data"))
			}
		case delta.OpEndFile:
			endfileSeen = true
			if written != instr.TotalSize {
				return tsyncerrors.Verify(errors.Errorf(
					"length mismatch: wrote %d bytes, expected %d", written, instr.TotalSize))
			}
		default:
			return tsyncerrors.Format(errors.Errorf("unrecognized instruction op: %d", instr.Op))
		}
	}
	if !endfileSeen {
		return tsyncerrors.Format(errors.New("instruction tape ended without ENDFILE"))
	}

	if expectedDigest != nil {
		if sum := hasher.Sum(nil); !bytesEqual(sum, expectedDigest) {
			return tsyncerrors.Verify(errors.New("whole-file verification hash mismatch"))
		}
	}

	if err := closer.Close(); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to close temporary output file"))
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to rename temporary output file into place"))
	}

	succeeded = true
	a.outputs[fileID] = outputPath
	return nil
}

// resolveBackref reads length bytes at offset from the output file
// previously committed under srcFileID, enforcing that a BACKREF may only
// reference a file reconstructed earlier in the same run.
func (a *Applier) resolveBackref(currentFileID, srcFileID uint16, offset int64, length uint32) ([]byte, error) {
	if srcFileID >= currentFileID {
		return nil, tsyncerrors.Verify(errors.Errorf(
			"bad backref: src_file_id %d is not earlier than current file %d", srcFileID, currentFileID))
	}
	path, ok := a.outputs[srcFileID]
	if !ok {
		return nil, tsyncerrors.Verify(errors.Errorf("bad backref: file %d has not been reconstructed", srcFileID))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, tsyncerrors.IO(errors.Wrap(err, "unable to open backref source file"))
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, tsyncerrors.Verify(errors.Wrap(err, "bad backref: offset out of range"))
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, tsyncerrors.Verify(errors.Wrap(err, "bad backref: length out of range"))
	}
	return data, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
