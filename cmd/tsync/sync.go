package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tridge-sync/tsync/cmd"
	"github.com/tridge-sync/tsync/pkg/endpoint/sshendpoint"
	"github.com/tridge-sync/tsync/pkg/endpointurl"
	"github.com/tridge-sync/tsync/pkg/logging"
	"github.com/tridge-sync/tsync/pkg/protocol"
	"github.com/tridge-sync/tsync/pkg/syncrun"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// remoteIndexSuffix is the convention this CLI uses to locate a zsync-style
// source's index alongside its data file: the index is expected to live at
// the same URL with this suffix appended. There is no protocol-level
// negotiation for this, since an http(s) source is by definition just a
// static file sitting on an ordinary web server.
const remoteIndexSuffix = ".tsidx"

func syncMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return tsyncerrors.Usage(errors.New("invalid number of arguments (expected <source> <destination>)"))
	}

	source, err := endpointurl.Parse(arguments[0])
	if err != nil {
		return tsyncerrors.Usage(errors.Wrap(err, "unable to parse source address"))
	}
	destination, err := endpointurl.Parse(arguments[1])
	if err != nil {
		return tsyncerrors.Usage(errors.Wrap(err, "unable to parse destination address"))
	}

	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	sizes := resolveSizes(configuration, syncConfiguration.blockSize)

	cache, err := loadSignatureCache(configuration)
	if err != nil {
		return err
	}

	switch {
	case source.Protocol == endpointurl.ProtocolLocal && destination.Protocol == endpointurl.ProtocolLocal:
		return syncrun.LocalSync(source.Path, destination.Path, cache, sizes, syncConfiguration.verify)

	case source.Protocol == endpointurl.ProtocolLocal && destination.Protocol == endpointurl.ProtocolSSH:
		// runID distinguishes one remote sync invocation from another in
		// this client's own debug log, since a user may run several
		// sequential `sync` commands against the same destination and want
		// to separate their log output after the fact.
		runID, err := uuid.NewRandom()
		if err != nil {
			return tsyncerrors.IO(errors.Wrap(err, "unable to generate run identifier"))
		}
		runLogger := logging.RootLogger.Sublogger("sync").Sublogger(runID.String())
		runLogger.Println("Dialing SSH destination")

		ep, err := sshendpoint.Dial(destination)
		if err != nil {
			return err
		}
		defer ep.Close()

		runLogger.Println("Running remote sync")
		acks, err := syncrun.RemoteSyncOverEndpoint(source.Path, ep, cache)
		for _, ack := range acks {
			if ack.Outcome == protocol.AckFailure {
				cmd.Warning(fmt.Sprintf("file %d failed to apply: %s", ack.FileID, ack.Detail))
			}
		}
		return err

	case source.Protocol == endpointurl.ProtocolHTTP && destination.Protocol == endpointurl.ProtocolLocal:
		return syncrun.PullZsync(source.Path+remoteIndexSuffix, source.Path, destination.Path, destination.Path, cache)

	case destination.Protocol == endpointurl.ProtocolHTTP:
		return tsyncerrors.Usage(errors.New("cannot push to an http(s) destination"))

	default:
		return tsyncerrors.Usage(errors.New("unsupported source/destination combination"))
	}
}

var syncCommand = &cobra.Command{
	Use:   "sync <source> <destination>",
	Short: "Synchronizes a destination to match a source's content",
	Run:   cmd.Mainify(syncMain),
}

var syncConfiguration struct {
	// help indicates whether or not help information should be shown for
	// the command.
	help bool
	// blockSize overrides the configured target block size, in bytes.
	blockSize int
	// verify enables whole-file verification of each reconstructed file
	// after synchronization.
	verify bool
}

func init() {
	flags := syncCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&syncConfiguration.help, "help", "h", false, "Show help information")
	flags.IntVar(&syncConfiguration.blockSize, "blocksize", 0, "Specify the target block size in bytes")
	flags.BoolVar(&syncConfiguration.verify, "verify", false, "Verify reconstructed files against whole-file digests")
}
