package housekeeping

import (
	"context"
	"time"

	"github.com/tridge-sync/tsync/pkg/logging"
	"github.com/tridge-sync/tsync/pkg/sigcache"
)

// housekeepingInterval is the interval at which housekeeping will be
// invoked when run regularly in the background.
const housekeepingInterval = 24 * time.Hour

// Regularly runs Housekeep immediately and then at housekeepingInterval
// thereafter, for a long-lived process. It terminates when ctx is
// cancelled.
func Regularly(ctx context.Context, logger *logging.Logger, cache *sigcache.Cache, dirs []string) {
	logger.Println("Performing initial housekeeping")
	Housekeep(logger, cache, dirs)

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Println("Performing regular housekeeping")
			Housekeep(logger, cache, dirs)
		}
	}
}
