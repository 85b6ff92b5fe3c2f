package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tridge-sync/tsync/pkg/protocol"
)

func TestWriteThenReadBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	writer, err := Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := writer.WriteBytes([]byte("hello world")); err != nil {
		t.Fatal(err)
	}

	got, err := writer.ReadBytes(6, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "world" {
		t.Errorf("unexpected byte range read: %q", got)
	}
	writer.Close()
}

func TestReadBytesPastEndOfFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	e, err := Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	e.WriteBytes([]byte("short"))

	if _, err := e.ReadBytes(0, 100); err == nil {
		t.Error("expected an error reading past end of file")
	}
}

func TestWriteThenReadFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.bin")

	writer, err := Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	frame := protocol.Frame{Type: protocol.MessageAck, Payload: []byte("ack")}
	if err := writer.WriteFrame(frame); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	reader, err := Open(path, os.O_RDONLY)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got, err := reader.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != frame.Type || string(got.Payload) != string(frame.Payload) {
		t.Errorf("frame mismatch: %+v != %+v", got, frame)
	}
}
