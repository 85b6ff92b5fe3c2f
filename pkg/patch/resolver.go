package patch

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
)

// StoreResolver is the typical KnownResolver: it resolves a (weak, strong)
// pair against a block store built from the destination's own index, then
// reads the matched byte range from the destination's on-disk file.
type StoreResolver struct {
	store *block.Store
	paths map[uint16]string
}

// NewStoreResolver returns a resolver backed by store, with paths mapping
// each file_id in store to its absolute path on disk.
func NewStoreResolver(store *block.Store, paths map[uint16]string) *StoreResolver {
	return &StoreResolver{store: store, paths: paths}
}

// ResolveKnown implements KnownResolver.
func (r *StoreResolver) ResolveKnown(weak uint32, strong block.Strong) ([]byte, error) {
	b, ok := r.store.ContainsStrong(weak, strong)
	if !ok {
		return nil, errors.New("no block in the local store matches this hash")
	}
	path, ok := r.paths[b.FileID]
	if !ok {
		return nil, errors.Errorf("no on-disk path recorded for file_id %d", b.FileID)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open local block source")
	}
	defer file.Close()

	if _, err := file.Seek(b.Offset, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "unable to seek to block offset")
	}
	data := make([]byte, b.Length)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, errors.Wrap(err, "unable to read block content")
	}
	return data, nil
}
