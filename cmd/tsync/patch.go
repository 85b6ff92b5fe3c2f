package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tridge-sync/tsync/cmd"
	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/patch"
	"github.com/tridge-sync/tsync/pkg/syncrun"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

func patchMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return tsyncerrors.Usage(errors.New("invalid number of arguments (expected <dest-root> <delta-file>)"))
	}
	destRoot, deltaPath := arguments[0], arguments[1]

	if patchConfiguration.output == "" {
		return tsyncerrors.Usage(errors.New("an output path must be specified with -o/--output"))
	}
	if patchConfiguration.verify && patchConfiguration.sourceIndex == "" {
		return tsyncerrors.Usage(errors.New("--verify requires a source index file specified with -X/--source-index"))
	}

	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	sizes := resolveSizes(configuration, 0)

	deltaFile, err := os.Open(deltaPath)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to open delta file"))
	}
	_, files, err := delta.Read(deltaFile)
	deltaFile.Close()
	if err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to decode delta file"))
	}
	single := len(files) == 1 && files[0].Name == ""

	destStore, destPaths, err := loadOrBuildDestStore(destRoot, patchConfiguration.destIndex, sizes)
	if err != nil {
		return err
	}

	var digestIdx *block.Index
	if patchConfiguration.verify {
		sourceIndexFile, err := os.Open(patchConfiguration.sourceIndex)
		if err != nil {
			return tsyncerrors.IO(errors.Wrap(err, "unable to open source index file"))
		}
		digestIdx, err = block.Read(sourceIndexFile)
		sourceIndexFile.Close()
		if err != nil {
			return tsyncerrors.Format(errors.Wrap(err, "unable to decode source index file"))
		}
	}

	resolver := patch.NewStoreResolver(destStore, destPaths)
	if err := syncrun.ApplyDelta(patchConfiguration.output, single, files, resolver, digestIdx); err != nil {
		return err
	}

	return nil
}

// loadOrBuildDestStore resolves the destination's block store either from a
// precomputed index file (-x), if given, or by indexing destRoot live. The
// on-disk paths backing each file_id are always derived from destRoot
// itself, since a precomputed index only carries relative paths.
func loadOrBuildDestStore(destRoot, destIndexPath string, sizes chunk.Sizes) (*block.Store, map[uint16]string, error) {
	if destIndexPath == "" {
		tree, err := syncrun.OpenTree(destRoot)
		if err != nil {
			return nil, nil, err
		}
		_, store, err := syncrun.BuildIndex(tree, nil, sizes, false)
		if err != nil {
			return nil, nil, err
		}
		return store, syncrun.OutputPaths(tree), nil
	}

	destIndexFile, err := os.Open(destIndexPath)
	if err != nil {
		return nil, nil, tsyncerrors.IO(errors.Wrap(err, "unable to open destination index file"))
	}
	idx, err := block.Read(destIndexFile)
	destIndexFile.Close()
	if err != nil {
		return nil, nil, tsyncerrors.Format(errors.Wrap(err, "unable to decode destination index file"))
	}

	info, err := os.Stat(destRoot)
	single := err == nil && !info.IsDir()

	paths := make(map[uint16]string, len(idx.Files))
	for _, m := range idx.Files {
		if single {
			paths[m.FileID] = destRoot
		} else {
			paths[m.FileID] = filepath.Join(destRoot, filepath.FromSlash(m.Path))
		}
	}
	return idx.Store(), paths, nil
}

var patchCommand = &cobra.Command{
	Use:   "patch <dest-root> <delta-file>",
	Short: "Applies a delta to a destination, reconstructing the new content",
	Run:   cmd.Mainify(patchMain),
}

var patchConfiguration struct {
	// help indicates whether or not help information should be shown for
	// the command.
	help bool
	// destIndex is the path to a precomputed destination index file. If
	// empty, the destination is indexed live from destRoot.
	destIndex string
	// sourceIndex is the path to the source's index file, carrying the
	// whole-file digests consulted when --verify is set.
	sourceIndex string
	// verify enables whole-file verification of each reconstructed file
	// against sourceIndex's recorded digests.
	verify bool
	// output is the path at which reconstructed content should be written.
	output string
}

func init() {
	flags := patchCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&patchConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&patchConfiguration.destIndex, "dest-index", "x", "", "Specify a precomputed destination index file")
	flags.StringVarP(&patchConfiguration.sourceIndex, "source-index", "X", "", "Specify the source's index file (required with --verify)")
	flags.BoolVar(&patchConfiguration.verify, "verify", false, "Verify reconstructed files against the source index's whole-file digests")
	flags.StringVarP(&patchConfiguration.output, "output", "o", "", "Specify the path at which reconstructed content should be written")
}
