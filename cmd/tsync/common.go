package main

import (
	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/sigcache"
	"github.com/tridge-sync/tsync/pkg/tsyncconfig"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// loadConfiguration loads the on-disk configuration from its default
// location, falling back to the built-in defaults if none is present.
func loadConfiguration() (*tsyncconfig.Configuration, error) {
	path, err := tsyncconfig.Path()
	if err != nil {
		return nil, tsyncerrors.IO(err)
	}
	configuration, err := tsyncconfig.Load(path)
	if err != nil {
		return nil, tsyncerrors.IO(err)
	}
	return configuration, nil
}

// resolveSizes derives the chunk size bounds to use for a run: an explicit
// --blocksize override takes priority, expanded to a full triple via
// chunk.SizesFromTarget; absent an override, the loaded configuration's
// bounds are used.
func resolveSizes(configuration *tsyncconfig.Configuration, blockSizeOverride int) chunk.Sizes {
	if blockSizeOverride > 0 {
		return chunk.SizesFromTarget(blockSizeOverride)
	}
	return chunk.Sizes{
		Min: configuration.MinBlockSize,
		Avg: configuration.AvgBlockSize,
		Max: configuration.MaxBlockSize,
	}
}

// loadSignatureCache loads the signature cache at the configuration's
// recorded path. A cache is always returned, even on a missing file, since
// its absence is never an error, only a missed optimization.
func loadSignatureCache(configuration *tsyncconfig.Configuration) (*sigcache.Cache, error) {
	cache, err := sigcache.Load(configuration.SignatureCachePath)
	if err != nil {
		return nil, tsyncerrors.IO(errors.Wrap(err, "unable to load signature cache"))
	}
	return cache, nil
}
