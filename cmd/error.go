package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// Fatal prints an error message to standard error and then terminates the
// process, mapping err's classified Kind to its exit code (1 for usage
// errors, 2 for I/O errors, 3 for format/verification errors) so scripts
// driving tsync can distinguish failure categories without parsing output.
func Fatal(err error) {
	Error(err)
	os.Exit(tsyncerrors.ExitCode(err))
}
