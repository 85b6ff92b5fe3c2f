package tsyncinfo

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestVersionSendReceiveAndCompare(t *testing.T) {
	buffer := &bytes.Buffer{}

	if err := SendVersion(buffer); err != nil {
		t.Fatal("unable to send version:", err)
	}
	if buffer.Len() != 12 {
		t.Fatal("buffer does not contain expected byte count")
	}

	if err := ReceiveAndCompareVersion(buffer); err != nil {
		t.Error("unexpected version mismatch on receive:", err)
	}
}

func TestVersionReceiveAndCompareEmptyBuffer(t *testing.T) {
	buffer := &bytes.Buffer{}

	if err := ReceiveAndCompareVersion(buffer); err == nil {
		t.Error("expected an error when receiving from an empty buffer")
	}
}

func TestVersionReceiveAndCompareMajorMismatch(t *testing.T) {
	buffer := &bytes.Buffer{}
	var data [12]byte
	binary.BigEndian.PutUint32(data[:4], VersionMajor+1)
	binary.BigEndian.PutUint32(data[4:8], 0)
	binary.BigEndian.PutUint32(data[8:], 0)
	buffer.Write(data[:])

	if err := ReceiveAndCompareVersion(buffer); err == nil {
		t.Error("expected an error for a major version mismatch")
	}
}

func TestVersionReceiveAndCompareMinorPatchToleratesDifference(t *testing.T) {
	buffer := &bytes.Buffer{}
	var data [12]byte
	binary.BigEndian.PutUint32(data[:4], VersionMajor)
	binary.BigEndian.PutUint32(data[4:8], VersionMinor+5)
	binary.BigEndian.PutUint32(data[8:], VersionPatch+5)
	buffer.Write(data[:])

	if err := ReceiveAndCompareVersion(buffer); err != nil {
		t.Error("minor/patch differences should be tolerated:", err)
	}
}
