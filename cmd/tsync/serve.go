package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tridge-sync/tsync/cmd"
	"github.com/tridge-sync/tsync/pkg/housekeeping"
	"github.com/tridge-sync/tsync/pkg/logging"
	"github.com/tridge-sync/tsync/pkg/syncrun"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// stdioStream adapts os.Stdin/os.Stdout into a single io.ReadWriter, the
// shape ServeDestination expects for a single bidirectional connection.
type stdioStream struct {
	io.Reader
	io.Writer
}

func serveMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return tsyncerrors.Usage(errors.New("invalid number of arguments (expected a single destination path)"))
	}
	root := arguments[0]

	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	sizes := resolveSizes(configuration, 0)

	cache, err := loadSignatureCache(configuration)
	if err != nil {
		return err
	}

	stream := stdioStream{Reader: os.Stdin, Writer: os.Stdout}
	if err := syncrun.ServeDestination(root, stream, cache, sizes); err != nil {
		return err
	}

	housekeeping.Housekeep(logging.RootLogger.Sublogger("housekeeping"), cache, []string{root})
	return nil
}

// serveCommand is not meant to be invoked directly by a user: it is the
// command the SSH transport starts on the remote host, with stdin/stdout
// wired to the connecting client's pipe. It is therefore hidden from help
// output.
var serveCommand = &cobra.Command{
	Use:    "serve <path>",
	Short:  "Serves a destination path over the sync protocol via stdin/stdout",
	Run:    cmd.Mainify(serveMain),
	Hidden: true,
}

func init() {
	flags := serveCommand.Flags()
	flags.SortFlags = false
	flags.BoolP("help", "h", false, "Show help information")
}
