package index

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func entryFor(path string, data []byte) Entry {
	return Entry{
		Path: path,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestIndexZeroLengthFile(t *testing.T) {
	ix := New(nil)
	store, files, err := ix.Index([]Entry{entryFor("empty.txt", nil)})
	if err != nil {
		t.Fatal("indexing a zero-length file should succeed:", err)
	}
	if store.Len() != 0 {
		t.Error("expected no blocks for a zero-length file")
	}
	if len(files) != 1 || files[0].Path != "empty.txt" {
		t.Errorf("unexpected file manifest: %+v", files)
	}
}

func TestIndexAssignsDenseFileIDs(t *testing.T) {
	ix := New(nil)
	data := bytes.Repeat([]byte("x"), 5000)
	_, files, err := ix.Index([]Entry{
		entryFor("a.txt", data),
		entryFor("b.txt", data),
		entryFor("c.txt", data),
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range files {
		if f.ID != uint16(i) {
			t.Errorf("expected file %d to have id %d, got %d", i, i, f.ID)
		}
	}
}

func TestIndexProducesLookupableBlocks(t *testing.T) {
	ix := New(nil)
	data := bytes.Repeat([]byte("abcdefgh"), 2000)
	store, _, err := ix.Index([]Entry{entryFor("f.txt", data)})
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() == 0 {
		t.Fatal("expected at least one block for non-empty input")
	}
}

func TestIndexOpenErrorPropagates(t *testing.T) {
	ix := New(nil)
	entry := Entry{
		Path: "broken.txt",
		Open: func() (io.ReadCloser, error) {
			return nil, io.ErrUnexpectedEOF
		},
	}
	if _, _, err := ix.Index([]Entry{entry}); err == nil {
		t.Error("expected an error when the entry cannot be opened")
	}
}

func TestIndexUsesCacheWhenFresh(t *testing.T) {
	cache := newTestCache(t)
	data := bytes.Repeat([]byte("z"), 3000)
	mtime := time.Now().Truncate(time.Second)

	ix := New(cache)
	entry := Entry{
		Path:    "cached.txt",
		Size:    int64(len(data)),
		ModTime: mtime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}

	store1, _, err := ix.Index([]Entry{entry})
	if err != nil {
		t.Fatal(err)
	}

	opened := false
	entry.Open = func() (io.ReadCloser, error) {
		opened = true
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	store2, _, err := ix.Index([]Entry{entry})
	if err != nil {
		t.Fatal(err)
	}

	if opened {
		t.Error("expected the cache hit to skip re-opening the file")
	}
	if store1.Len() != store2.Len() {
		t.Error("cached and freshly computed block counts differ")
	}
}
