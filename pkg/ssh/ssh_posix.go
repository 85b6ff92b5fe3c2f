//go:build !windows && !plan9

package ssh

import (
	"syscall"

	"github.com/tridge-sync/tsync/pkg/process"
)

// sshCommand returns the name of or path to the ssh command.
func sshCommand() (string, error) {
	return "ssh", nil
}

// processAttributes returns the process attributes to use for starting ssh.
func processAttributes() *syscall.SysProcAttr {
	return process.DetachedProcessAttributes()
}
