// Package tsyncinfo holds build-time identity information: the protocol
// version exchanged between endpoints during negotiation, and environment
// switches for debug/development behavior.
package tsyncinfo

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

const (
	// VersionMajor is the current major protocol version.
	VersionMajor = 0
	// VersionMinor is the current minor protocol version.
	VersionMinor = 1
	// VersionPatch is the current patch protocol version.
	VersionPatch = 0
)

// Version is the current version in dotted form.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// versionBytes is the wire encoding of a version: three big-endian uint32s.
type versionBytes [12]byte

// SendVersion writes the running binary's version to writer. Endpoints
// exchange this before any Index/Delta traffic so that a protocol mismatch
// is caught immediately rather than as a confusing decode failure deep into
// the exchange.
func SendVersion(writer io.Writer) error {
	var data versionBytes
	binary.BigEndian.PutUint32(data[:4], VersionMajor)
	binary.BigEndian.PutUint32(data[4:8], VersionMinor)
	binary.BigEndian.PutUint32(data[8:], VersionPatch)

	if _, err := writer.Write(data[:]); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to send version"))
	}
	return nil
}

// ReceiveVersion reads a peer's version from reader.
func ReceiveVersion(reader io.Reader) (major, minor, patch uint32, err error) {
	var data versionBytes
	if _, err := io.ReadFull(reader, data[:]); err != nil {
		return 0, 0, 0, tsyncerrors.IO(errors.Wrap(err, "unable to receive version"))
	}

	major = binary.BigEndian.Uint32(data[:4])
	minor = binary.BigEndian.Uint32(data[4:8])
	patch = binary.BigEndian.Uint32(data[8:])
	return major, minor, patch, nil
}

// ReceiveAndCompareVersion reads a peer's version and compares it against
// the running binary's. A major version mismatch is fatal to the exchange;
// differing minor or patch versions are tolerated since the wire formats
// they touch (index/delta/frame) are unchanged within a major version.
func ReceiveAndCompareVersion(reader io.Reader) error {
	major, _, _, err := ReceiveVersion(reader)
	if err != nil {
		return err
	}
	if major != VersionMajor {
		return tsyncerrors.Format(errors.Errorf(
			"peer protocol major version %d is incompatible with local version %d", major, VersionMajor))
	}
	return nil
}
