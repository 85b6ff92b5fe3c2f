package ssh

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/endpointurl"
	"github.com/tridge-sync/tsync/pkg/process"
)

// killDelay bounds how long closing the stream returned by Connect waits
// for the ssh process to exit on its own before sending SIGTERM; zero
// sends SIGTERM immediately.
const killDelay = 0

// Connect starts `ssh <remote> <remoteCommand>` and returns an
// io.ReadWriteCloser wrapping its standard input/output. remoteCommand is
// expected to be an invocation of the remote tsync binary in serve mode, so
// that the returned stream carries framed protocol traffic
// (pkg/protocol.Handshake, followed by Index/Delta/Ack frames).
func Connect(remote *endpointurl.URL, remoteCommand string) (io.ReadWriteCloser, error) {
	command, err := Command(remote, remoteCommand)
	if err != nil {
		return nil, err
	}

	stream, err := process.NewStream(command, killDelay)
	if err != nil {
		return nil, errors.Wrap(err, "unable to redirect SSH process streams")
	}

	if err := command.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start SSH process")
	}

	return stream, nil
}
