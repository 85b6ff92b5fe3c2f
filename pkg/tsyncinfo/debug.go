package tsyncinfo

import (
	"os"
)

// DebugEnabled controls whether or not verbose debug logging is enabled. It
// is set automatically based on the TSYNC_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("TSYNC_DEBUG") == "1"
}
