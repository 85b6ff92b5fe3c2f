package main

import (
	"os"

	"github.com/spf13/cobra"
)

func rootMain(command *cobra.Command, arguments []string) {
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "tsync",
	Short: "tsync synchronizes files and directories using block-addressed binary deltas.",
	Run:   rootMain,
}

func init() {
	// Disable Cobra's command sorting behavior so that subcommands are
	// listed in the order they're registered below rather than
	// alphabetically.
	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		indexCommand,
		diffCommand,
		patchCommand,
		syncCommand,
		serveCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
