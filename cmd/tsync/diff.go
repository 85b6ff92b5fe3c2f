package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tridge-sync/tsync/cmd"
	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/syncrun"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

func diffMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return tsyncerrors.Usage(errors.New("invalid number of arguments (expected a single new path)"))
	}
	newPath := arguments[0]

	if diffConfiguration.destIndex == "" {
		return tsyncerrors.Usage(errors.New("a destination index file must be specified with -x/--dest-index"))
	}
	if diffConfiguration.output == "" {
		return tsyncerrors.Usage(errors.New("an output path must be specified with -o/--output"))
	}

	destIndexFile, err := os.Open(diffConfiguration.destIndex)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to open destination index file"))
	}
	oldIdx, err := block.Read(destIndexFile)
	destIndexFile.Close()
	if err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to decode destination index file"))
	}

	newTree, err := syncrun.OpenTree(newPath)
	if err != nil {
		return err
	}

	files, err := syncrun.BuildDelta(newTree, oldIdx.Store(), oldIdx.BlockSize)
	if err != nil {
		return err
	}

	output, err := os.Create(diffConfiguration.output)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to create output delta file"))
	}

	var writeErr error
	if newTree.Single {
		writeErr = delta.WriteFile(output, oldIdx.BlockSize, files[0].Instructions)
	} else {
		writeErr = delta.Write(output, oldIdx.BlockSize, files, nil)
	}
	closeErr := output.Close()
	if writeErr != nil {
		return tsyncerrors.Format(errors.Wrap(writeErr, "unable to write delta file"))
	}
	if closeErr != nil {
		return tsyncerrors.IO(errors.Wrap(closeErr, "unable to close output delta file"))
	}

	return nil
}

var diffCommand = &cobra.Command{
	Use:   "diff <new-path>",
	Short: "Computes a delta between a destination index and a new file or directory",
	Run:   cmd.Mainify(diffMain),
}

// diffConfiguration has no --blocksize flag: the delta builder's probe
// window is fixed by the destination index's own recorded blocksize
// (oldIdx.BlockSize), so a separate override here would have no effect and
// would only mislead callers into thinking it does.
var diffConfiguration struct {
	// help indicates whether or not help information should be shown for
	// the command.
	help bool
	// destIndex is the path to the destination's index file.
	destIndex string
	// output is the path to which the delta file should be written.
	output string
}

func init() {
	flags := diffCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&diffConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&diffConfiguration.destIndex, "dest-index", "x", "", "Specify the destination's index file")
	flags.StringVarP(&diffConfiguration.output, "output", "o", "", "Specify the path to which the delta file should be written")
}
