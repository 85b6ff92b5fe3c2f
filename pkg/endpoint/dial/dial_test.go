package dial

import (
	"path/filepath"
	"testing"

	"github.com/tridge-sync/tsync/pkg/endpointurl"
)

func TestOpenLocalForWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	url, err := endpointurl.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	writer, err := Open(url, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := writer.WriteBytes([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	reader, err := Open(url, false)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got, err := reader.ReadBytes(0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestOpenHTTP(t *testing.T) {
	url, err := endpointurl.Parse("https://example.com/data.idx")
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(url, false)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
}
