package ssh

import (
	"os/exec"
	"syscall"

	"github.com/tridge-sync/tsync/pkg/process"
)

// commandSearchPaths specifies locations on Windows where we might find
// ssh.exe, since it's not reliably on PATH outside of an OpenSSH install.
var commandSearchPaths = []string{
	`C:\Program Files\Git\usr\bin`,
	`C:\Program Files (x86)\Git\usr\bin`,
	`C:\msys32\usr\bin`,
	`C:\msys64\usr\bin`,
	`C:\cygwin\bin`,
	`C:\cygwin64\bin`,
}

// commandNamed searches for a command with the specified name on PATH,
// falling back to a well-known set of directories where OpenSSH-alike
// distributions tend to install outside of PATH.
func commandNamed(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return process.FindCommand(name, commandSearchPaths)
}

// sshCommand returns the name of or path to the ssh command.
func sshCommand() (string, error) {
	return commandNamed("ssh")
}

// processAttributes returns the process attributes to use for starting ssh.
func processAttributes() *syscall.SysProcAttr {
	return process.DetachedProcessAttributes()
}
