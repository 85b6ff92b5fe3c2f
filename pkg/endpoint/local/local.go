// Package local implements a full-capability endpoint.Endpoint backed by a
// single file on the local filesystem.
package local

import (
	"os"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/protocol"
)

// Endpoint is a local file opened for sync traffic. It supports every
// endpoint.Endpoint method: random-access reads/writes via the underlying
// *os.File, and framed messages by treating the same file (or, in practice,
// a pipe stood in for testing) as an io.ReadWriter.
type Endpoint struct {
	file *os.File
}

// Open opens path with the given os.OpenFile flag (e.g. os.O_RDONLY or
// os.O_WRONLY|os.O_CREATE) for use as a local endpoint.
func Open(path string, flag int) (*Endpoint, error) {
	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open local endpoint file")
	}
	return &Endpoint{file: file}, nil
}

// ReadBytes implements endpoint.Endpoint.
func (e *Endpoint) ReadBytes(offset int64, length int) ([]byte, error) {
	buffer := make([]byte, length)
	n, err := e.file.ReadAt(buffer, offset)
	if err != nil && n < length {
		return nil, errors.Wrap(err, "unable to read local endpoint bytes")
	}
	return buffer, nil
}

// WriteBytes implements endpoint.Endpoint.
func (e *Endpoint) WriteBytes(data []byte) (int, error) {
	n, err := e.file.Write(data)
	if err != nil {
		return n, errors.Wrap(err, "unable to write local endpoint bytes")
	}
	return n, nil
}

// ReadFrame implements endpoint.Endpoint.
func (e *Endpoint) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(e.file)
}

// WriteFrame implements endpoint.Endpoint.
func (e *Endpoint) WriteFrame(frame protocol.Frame) error {
	return protocol.WriteFrame(e.file, frame)
}

// Close implements endpoint.Endpoint.
func (e *Endpoint) Close() error {
	return e.file.Close()
}
