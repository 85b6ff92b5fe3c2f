//go:build !plan9

// TODO: Figure out what to do for Plan 9. It doesn't have syscall.WaitStatus.

package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

const (
	// posixShellInvalidCommandExitCode is the exit code returned by most (all?)
	// POSIX shells when the provided command is invalid, e.g. due to a file
	// without executable permissions. It seems to have originated with the
	// Bourne shell and then been brought over to bash, zsh, and others. It
	// doesn't seem to have a corresponding errno value, which I guess makes
	// sense since errno values aren't generally expected to be used as exit
	// codes, so we have to define it manually.
	posixShellInvalidCommandExitCode = 126

	// posixShellCommandNotFoundExitCode is the exit code returned by most
	// (all?) POSIX shells when the provided command isn't found.
	posixShellCommandNotFoundExitCode = 127
)

// ExitCodeForProcessState extracts the process exit code from the process'
// post-exit state.
func ExitCodeForProcessState(state *os.ProcessState) (int, error) {
	// Attempt to extract the wait status. The syscall.WaitStatus type is
	// platform-dependent, but this code uses a portable subset of its features.
	waitStatus, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, errors.New("unable to access wait status")
	}

	// Done.
	return waitStatus.ExitStatus(), nil
}

// ExitCodeForError extracts the process exit code from an error returned by
// (*exec.Cmd).Run or .Wait, possibly wrapped (as Stream.Close does). It
// fails if err is nil or does not wrap an *exec.ExitError.
func ExitCodeForError(err error) (int, error) {
	if err == nil {
		return 0, errors.New("no error provided")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, errors.New("error is not an exit error")
	}
	return ExitCodeForProcessState(exitErr.ProcessState)
}

// IsPOSIXShellInvalidCommand returns whether or not a process error
// represents an "invalid command" error from a POSIX shell.
func IsPOSIXShellInvalidCommand(err error) bool {
	code, codeErr := ExitCodeForError(err)
	return codeErr == nil && code == posixShellInvalidCommandExitCode
}

// IsPOSIXShellCommandNotFound returns whether or not a process error
// represents a "command not found" error from a POSIX shell.
func IsPOSIXShellCommandNotFound(err error) bool {
	code, codeErr := ExitCodeForError(err)
	return codeErr == nil && code == posixShellCommandNotFoundExitCode
}
