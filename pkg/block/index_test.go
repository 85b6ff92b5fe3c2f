package block

import (
	"bytes"
	"testing"
)

func TestBuildIndexRoundTrip(t *testing.T) {
	store := NewStore()
	store.Insert(Block{Weak: 1, Strong: Hash([]byte("aaaa")), FileID: 0, Offset: 0, Length: 4})
	store.Insert(Block{Weak: 2, Strong: Hash([]byte("bbbb")), FileID: 0, Offset: 4, Length: 4})
	store.Insert(Block{Weak: 3, Strong: Hash([]byte("cc")), FileID: 0, Offset: 8, Length: 2})

	files := []File{{ID: 0, Path: "a.txt", Size: 10}}
	idx := BuildIndex(4, files, store)

	var buf bytes.Buffer
	if err := Write(&buf, idx); err != nil {
		t.Fatal("write failed:", err)
	}

	decoded, err := Read(&buf)
	if err != nil {
		t.Fatal("read failed:", err)
	}

	if decoded.BlockSize != 4 {
		t.Error("blocksize mismatch:", decoded.BlockSize)
	}
	if len(decoded.Files) != 1 || decoded.Files[0].Path != "a.txt" {
		t.Fatalf("manifest mismatch: %+v", decoded.Files)
	}
	if len(decoded.Hashes) != 3 {
		t.Fatalf("expected 3 hash entries, got %d", len(decoded.Hashes))
	}

	rebuilt := decoded.Store()
	if rebuilt.Len() != 3 {
		t.Error("rebuilt store has wrong length:", rebuilt.Len())
	}
	got, ok := rebuilt.ContainsStrong(3, Hash([]byte("cc")))
	if !ok {
		t.Fatal("expected to find the short final block")
	}
	if got.Length != 2 {
		t.Error("short final block length not preserved:", got.Length)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOTANINDEXFILEHEADER")
	if _, err := Read(buf); err == nil {
		t.Error("expected an error for bad magic")
	}
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	store := NewStore()
	idx := BuildIndex(4, nil, store)
	var buf bytes.Buffer
	if err := Write(&buf, idx); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	raw[9] = 0xff // corrupt the low byte of the version field
	if _, err := Read(bytes.NewReader(raw)); err == nil {
		t.Error("expected an error for unsupported version")
	}
}

func TestIndexDigestRoundTrip(t *testing.T) {
	idx := BuildIndex(4, []File{{ID: 0, Path: "a.txt", Size: 4}}, NewStore())
	idx.Digests = []FileDigest{{FileID: 0, Digest: Hash([]byte("aaaa"))}}

	var buf bytes.Buffer
	if err := Write(&buf, idx); err != nil {
		t.Fatal("write failed:", err)
	}
	decoded, err := Read(&buf)
	if err != nil {
		t.Fatal("read failed:", err)
	}

	digest, ok := decoded.DigestFor(0)
	if !ok {
		t.Fatal("expected a recorded digest for file 0")
	}
	if digest != Hash([]byte("aaaa")) {
		t.Error("digest did not round-trip correctly")
	}
	if _, ok := decoded.DigestFor(1); ok {
		t.Error("expected no digest recorded for file 1")
	}
}

func TestBuildIndexEmptyStore(t *testing.T) {
	idx := BuildIndex(4096, nil, NewStore())
	var buf bytes.Buffer
	if err := Write(&buf, idx); err != nil {
		t.Fatal(err)
	}
	decoded, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Hashes) != 0 || len(decoded.Files) != 0 {
		t.Error("expected empty index to round-trip as empty")
	}
}
