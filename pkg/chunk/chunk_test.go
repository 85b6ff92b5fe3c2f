package chunk

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomBytes(t *testing.T, seed int64, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

// TestAllReassemblesInput verifies that concatenating the chunks returned by
// All reproduces the original input exactly.
func TestAllReassemblesInput(t *testing.T) {
	data := randomBytes(t, 1, 500*1024)

	chunks, err := All(bytes.NewReader(data))
	if err != nil {
		t.Fatal("chunking failed:", err)
	}

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c.Data...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Fatal("reassembled data does not match original")
	}
}

// TestChunkSizeBounds verifies that every non-final chunk respects the
// configured minimum and maximum sizes.
func TestChunkSizeBounds(t *testing.T) {
	data := randomBytes(t, 2, 500*1024)

	chunks, err := All(bytes.NewReader(data))
	if err != nil {
		t.Fatal("chunking failed:", err)
	}
	for i, c := range chunks {
		if len(c.Data) > MaxSize {
			t.Errorf("chunk %d exceeds max size: %d > %d", i, len(c.Data), MaxSize)
		}
		if i != len(chunks)-1 && len(c.Data) < MinSize {
			t.Errorf("non-final chunk %d is smaller than min size: %d < %d", i, len(c.Data), MinSize)
		}
	}
}

// TestEmptyInput verifies that chunking an empty stream produces no chunks.
func TestEmptyInput(t *testing.T) {
	chunks, err := All(bytes.NewReader(nil))
	if err != nil {
		t.Fatal("chunking empty input failed:", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks from empty input, got %d", len(chunks))
	}
}

// TestInsertionLocalizesChangedChunks is the key content-defined chunking
// property: inserting a small amount of data in the middle of a large input
// should only perturb the chunks near the insertion point, leaving chunks
// far away on either side identical.
func TestInsertionLocalizesChangedChunks(t *testing.T) {
	original := randomBytes(t, 3, 500*1024)

	insertAt := 250 * 1024
	insertion := randomBytes(t, 4, 137)
	modified := make([]byte, 0, len(original)+len(insertion))
	modified = append(modified, original[:insertAt]...)
	modified = append(modified, insertion...)
	modified = append(modified, original[insertAt:]...)

	originalChunks, err := All(bytes.NewReader(original))
	if err != nil {
		t.Fatal("chunking original failed:", err)
	}
	modifiedChunks, err := All(bytes.NewReader(modified))
	if err != nil {
		t.Fatal("chunking modified failed:", err)
	}

	originalHashes := make(map[string]bool)
	for _, c := range originalChunks {
		originalHashes[string(c.Data)] = true
	}

	var unmatched int
	for _, c := range modifiedChunks {
		if !originalHashes[string(c.Data)] {
			unmatched++
		}
	}

	// Only chunks overlapping the insertion should fail to match; the vast
	// majority of chunks (covering 500KiB of unperturbed data) must survive
	// unchanged. A handful of edge chunks is expected; a collapse to "every
	// chunk changed" would indicate the cut points aren't content-stable.
	if unmatched > len(modifiedChunks)/4 {
		t.Errorf("too many chunks changed after a local insertion: %d of %d", unmatched, len(modifiedChunks))
	}
	if unmatched == 0 {
		t.Error("expected at least the chunks touching the insertion to change")
	}
}

// TestDeterministic verifies that chunking the same input twice produces
// identical boundaries.
func TestDeterministic(t *testing.T) {
	data := randomBytes(t, 5, 300*1024)

	a, err := All(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	b, err := All(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ across runs: %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Offset != b[i].Offset || !bytes.Equal(a[i].Data, b[i].Data) {
			t.Fatalf("chunk %d differs across runs", i)
		}
	}
}
