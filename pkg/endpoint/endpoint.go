// Package endpoint defines the capability set a sync endpoint exposes:
// random-access byte reads/writes for pull-mode transfers, and framed
// message exchange for live two-way protocol sessions. Individual
// implementations (local, ssh, http) support whichever subset their
// transport allows and return ErrUnsupported for the rest.
package endpoint

import (
	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/protocol"
)

// ErrUnsupported is returned by an Endpoint method that the underlying
// transport cannot perform.
var ErrUnsupported = errors.New("operation not supported by this endpoint")

// Endpoint is the capability set a sync participant exposes. A local file
// or an SSH pipe can support every method; an HTTP endpoint (pull-only
// Range-request access) supports only ReadBytes.
type Endpoint interface {
	// ReadBytes reads length bytes starting at offset.
	ReadBytes(offset int64, length int) ([]byte, error)
	// WriteBytes writes data at the endpoint's current write position.
	WriteBytes(data []byte) (int, error)
	// ReadFrame reads one framed protocol message.
	ReadFrame() (protocol.Frame, error)
	// WriteFrame writes one framed protocol message.
	WriteFrame(frame protocol.Frame) error
	// Close releases any resources held by the endpoint.
	Close() error
}
