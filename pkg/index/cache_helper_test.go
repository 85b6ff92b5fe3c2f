package index

import (
	"path/filepath"
	"testing"

	"github.com/tridge-sync/tsync/pkg/sigcache"
)

func newTestCache(t *testing.T) *sigcache.Cache {
	t.Helper()
	cache, err := sigcache.Load(filepath.Join(t.TempDir(), "sigcache.yaml"))
	if err != nil {
		t.Fatal("unable to create test signature cache:", err)
	}
	return cache
}
