package syncrun

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/patch"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRoundTripIdenticalFileProducesNoLiterals exercises spec invariant 3
// (identity) across the full index -> delta -> patch pipeline: indexing a
// file and diffing that exact file against its own index must yield zero
// LITERAL bytes, since BuildDelta's chunker must reproduce the same cut
// points BuildIndex found.
func TestRoundTripIdenticalFileProducesNoLiterals(t *testing.T) {
	dir := t.TempDir()

	random := rand.New(rand.NewSource(3))
	content := make([]byte, 32*1024)
	random.Read(content)
	path := writeTempFile(t, dir, "data.bin", content)

	tree, err := OpenTree(path)
	if err != nil {
		t.Fatal(err)
	}

	sizes := chunk.SizesFromTarget(256)
	idx, store, err := BuildIndex(tree, nil, sizes, false)
	if err != nil {
		t.Fatal(err)
	}

	files, err := BuildDelta(tree, store, idx.BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected a single-file delta, got %d files", len(files))
	}
	for _, instr := range files[0].Instructions {
		if instr.Op == delta.OpLiteral {
			t.Errorf("identity diff produced a LITERAL instruction of %d bytes", len(instr.Literal))
		}
	}

	resolver := patch.NewStoreResolver(store, OutputPaths(tree))
	outputPath := filepath.Join(dir, "reconstructed.bin")
	if err := ApplyDelta(outputPath, true, files, resolver, nil); err != nil {
		t.Fatal(err)
	}

	reconstructed, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(reconstructed, content) {
		t.Error("reconstructed file does not match source content")
	}
}

// TestRoundTripEditedFileReconstructsCorrectly covers an interior edit:
// a small interior edit should be reconstructed correctly via a mix of
// KNOWN and LITERAL instructions, with unmodified regions still matched
// against the destination's index rather than re-sent as literal data.
func TestRoundTripEditedFileReconstructsCorrectly(t *testing.T) {
	dir := t.TempDir()

	random := rand.New(rand.NewSource(4))
	original := make([]byte, 48*1024)
	random.Read(original)
	destPath := writeTempFile(t, dir, "dest.bin", original)

	edited := append([]byte{}, original...)
	copy(edited[20000:20016], bytes.Repeat([]byte{0xFF}, 16))
	sourcePath := writeTempFile(t, dir, "source.bin", edited)

	destTree, err := OpenTree(destPath)
	if err != nil {
		t.Fatal(err)
	}
	sourceTree, err := OpenTree(sourcePath)
	if err != nil {
		t.Fatal(err)
	}

	sizes := chunk.SizesFromTarget(256)
	idx, store, err := BuildIndex(destTree, nil, sizes, false)
	if err != nil {
		t.Fatal(err)
	}

	files, err := BuildDelta(sourceTree, store, idx.BlockSize)
	if err != nil {
		t.Fatal(err)
	}

	var sawKnown, sawLiteral bool
	for _, instr := range files[0].Instructions {
		switch instr.Op {
		case delta.OpKnown:
			sawKnown = true
		case delta.OpLiteral:
			sawLiteral = true
		}
	}
	if !sawKnown {
		t.Error("expected unmodified regions to match via KNOWN")
	}
	if !sawLiteral {
		t.Error("expected the edited region to appear as LITERAL")
	}

	resolver := patch.NewStoreResolver(store, OutputPaths(destTree))
	outputPath := filepath.Join(dir, "reconstructed.bin")
	if err := ApplyDelta(outputPath, true, files, resolver, nil); err != nil {
		t.Fatal(err)
	}

	reconstructed, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(reconstructed, edited) {
		t.Error("reconstructed file does not match the edited source content")
	}
}
