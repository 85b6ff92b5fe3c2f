package ssh

import (
	"github.com/tridge-sync/tsync/pkg/process"
)

// IsCommandNotFound returns whether or not an error returned by running an
// SSH command indicates that the remote command itself was not found (as
// opposed to, e.g., a connection failure). It checks both the POSIX shell
// exit code and POSIX/Windows shell error text, since the local ssh client
// may be running on either platform regardless of the remote host's.
func IsCommandNotFound(err error) bool {
	if process.IsPOSIXShellCommandNotFound(err) {
		return true
	}
	output := process.ExtractExitErrorMessage(err)
	if output == "" {
		return false
	}
	return process.OutputIsPOSIXCommandNotFound(output) ||
		process.OutputIsWindowsInvalidCommand(output) ||
		process.OutputIsWindowsCommandNotFound(output)
}
