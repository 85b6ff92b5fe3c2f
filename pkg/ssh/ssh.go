// Package ssh constructs SSH subprocess connections to a remote endpoint.
// Authentication is delegated entirely to the local ssh client (keys,
// agents, config aliases); this package only shapes the command line and
// environment.
package ssh

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/endpointurl"
)

const connectTimeoutSeconds = 5

// timeoutArgument returns the option flag limiting SSH connection time
// (though not transfer time or process lifetime).
func timeoutArgument() string {
	return fmt.Sprintf("-oConnectTimeout=%d", connectTimeoutSeconds)
}

// Command constructs (but does not start) an SSH process connecting to
// remote and invoking command on the remote shell. The path component of
// remote is not used as a working directory; the remote command runs
// wherever the SSH server places it by default.
func Command(remote *endpointurl.URL, command string) (*exec.Cmd, error) {
	if remote.Protocol != endpointurl.ProtocolSSH {
		return nil, errors.New("non-SSH endpoint address provided")
	}

	ssh, err := sshCommand()
	if err != nil {
		return nil, errors.Wrap(err, "unable to identify SSH executable")
	}

	target := remote.Hostname
	if remote.Username != "" {
		target = fmt.Sprintf("%s@%s", remote.Username, remote.Hostname)
	}

	// We intentionally avoid SSH-layer compression: the protocol frames
	// already carry compact binary encodings, and double-compressing would
	// only cost CPU.
	var arguments []string
	arguments = append(arguments, timeoutArgument())
	if remote.Port != 0 {
		arguments = append(arguments, "-p", fmt.Sprintf("%d", remote.Port))
	}
	arguments = append(arguments, target, command)

	process := exec.Command(ssh, arguments...)
	process.SysProcAttr = processAttributes()
	process.Env = os.Environ()
	return process, nil
}
