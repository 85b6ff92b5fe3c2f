// Package sshendpoint implements an endpoint.Endpoint over a subprocess
// SSH connection to a remote tsync binary running in serve mode.
package sshendpoint

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/endpoint"
	"github.com/tridge-sync/tsync/pkg/endpointurl"
	"github.com/tridge-sync/tsync/pkg/protocol"
	"github.com/tridge-sync/tsync/pkg/ssh"
)

// remoteServeCommand builds the command invoked on the remote host,
// embedding the destination path carried by the endpoint address. The
// destination's tsync binary must be reachable on the remote's default
// PATH; there is no agent-installation step in this design. The path is
// single-quoted with any embedded single quotes escaped, matching the
// standard POSIX shell-quoting idiom, since it is interpolated into a
// remote shell command line.
func remoteServeCommand(path string) string {
	return fmt.Sprintf("tsync serve %s", shellQuote(path))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Endpoint is a live, framed connection to a remote tsync process. It
// supports only ReadFrame/WriteFrame: a subprocess pipe has no notion of
// random-access byte ranges, so ReadBytes/WriteBytes return
// endpoint.ErrUnsupported.
type Endpoint struct {
	stream io.ReadWriteCloser
}

// Dial establishes an SSH connection to remote, starting the remote tsync
// binary in serve mode against remote's path, and performs the protocol
// version handshake before returning.
func Dial(remote *endpointurl.URL) (*Endpoint, error) {
	stream, err := ssh.Connect(remote, remoteServeCommand(remote.Path))
	if err != nil {
		return nil, err
	}
	if err := protocol.Handshake(stream); err != nil {
		if closeErr := stream.Close(); ssh.IsCommandNotFound(closeErr) {
			return nil, errors.New("remote tsync binary not found on PATH")
		}
		return nil, err
	}
	return &Endpoint{stream: stream}, nil
}

// ReadBytes implements endpoint.Endpoint.
func (e *Endpoint) ReadBytes(offset int64, length int) ([]byte, error) {
	return nil, endpoint.ErrUnsupported
}

// WriteBytes implements endpoint.Endpoint.
func (e *Endpoint) WriteBytes(data []byte) (int, error) {
	return 0, endpoint.ErrUnsupported
}

// ReadFrame implements endpoint.Endpoint.
func (e *Endpoint) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(e.stream)
}

// WriteFrame implements endpoint.Endpoint.
func (e *Endpoint) WriteFrame(frame protocol.Frame) error {
	return protocol.WriteFrame(e.stream, frame)
}

// Close implements endpoint.Endpoint.
func (e *Endpoint) Close() error {
	return e.stream.Close()
}
