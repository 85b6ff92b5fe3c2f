package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tridge-sync/tsync/cmd"
	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/syncrun"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

func indexMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return tsyncerrors.Usage(errors.New("invalid number of arguments (expected a single path)"))
	}
	path := arguments[0]

	if indexConfiguration.output == "" {
		return tsyncerrors.Usage(errors.New("an output path must be specified with -o/--output"))
	}

	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	sizes := resolveSizes(configuration, indexConfiguration.blockSize)

	cache, err := loadSignatureCache(configuration)
	if err != nil {
		return err
	}

	tree, err := syncrun.OpenTree(path)
	if err != nil {
		return err
	}

	idx, _, err := syncrun.BuildIndex(tree, cache, sizes, indexConfiguration.verify)
	if err != nil {
		return err
	}

	output, err := os.Create(indexConfiguration.output)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to create output index file"))
	}
	writeErr := block.Write(output, idx)
	closeErr := output.Close()
	if writeErr != nil {
		return tsyncerrors.Format(errors.Wrap(writeErr, "unable to write index file"))
	}
	if closeErr != nil {
		return tsyncerrors.IO(errors.Wrap(closeErr, "unable to close output index file"))
	}

	if err := cache.Save(); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to save signature cache"))
	}

	printIndexSummary(idx)
	return nil
}

func printIndexSummary(idx *block.Index) {
	var totalSize uint64
	for _, m := range idx.Files {
		totalSize += uint64(m.Size)
	}
	fmt.Printf("Indexed %d file(s), %s across %d block(s)\n",
		len(idx.Files), humanize.Bytes(totalSize), len(idx.Hashes))
}

var indexCommand = &cobra.Command{
	Use:   "index <path>",
	Short: "Builds a block index for a file or directory",
	Run:   cmd.Mainify(indexMain),
}

var indexConfiguration struct {
	// help indicates whether or not help information should be shown for
	// the command.
	help bool
	// output is the path to which the index file should be written.
	output string
	// blockSize overrides the configured target block size, in bytes.
	blockSize int
	// verify records a whole-file digest for every entry, for later
	// reconstruction verification by patch --verify.
	verify bool
}

func init() {
	flags := indexCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&indexConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&indexConfiguration.output, "output", "o", "", "Specify the path to which the index file should be written")
	flags.IntVar(&indexConfiguration.blockSize, "blocksize", 0, "Specify the target block size in bytes")
	flags.BoolVar(&indexConfiguration.verify, "verify", false, "Record whole-file digests for later verification")
}
