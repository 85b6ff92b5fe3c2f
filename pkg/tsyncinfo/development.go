package tsyncinfo

import (
	"os"
)

// DevelopmentModeEnabled controls whether or not development mode is enabled.
// It is set automatically based on the TSYNC_DEVELOPMENT environment
// variable.
var DevelopmentModeEnabled bool

func init() {
	DevelopmentModeEnabled = os.Getenv("TSYNC_DEVELOPMENT") == "1"
}
