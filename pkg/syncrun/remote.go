package syncrun

import (
	"bytes"
	"crypto/sha1"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/endpoint"
	"github.com/tridge-sync/tsync/pkg/endpoint/httpendpoint"
	"github.com/tridge-sync/tsync/pkg/index"
	"github.com/tridge-sync/tsync/pkg/patch"
	"github.com/tridge-sync/tsync/pkg/protocol"
	"github.com/tridge-sync/tsync/pkg/sigcache"
	"github.com/tridge-sync/tsync/pkg/tsyncerrors"
)

// saveCache persists cache if non-nil, tolerating a nil cache as a no-op
// since the cache is an optional optimization throughout this package.
func saveCache(cache *sigcache.Cache) error {
	if cache == nil {
		return nil
	}
	if err := cache.Save(); err != nil {
		return tsyncerrors.IO(err)
	}
	return nil
}

// openOrEmptyTree is OpenTree, but tolerates root not existing yet (the
// common case for a destination being synchronized for the first time): it
// yields a tree with no entries rather than an error, taking its
// single-file-or-directory classification from single since the path
// itself carries no evidence either way.
func openOrEmptyTree(root string, single bool) (*Tree, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return &Tree{Root: root, Single: single}, nil
	} else if err != nil {
		return nil, tsyncerrors.IO(errors.Wrapf(err, "unable to stat %q", root))
	}

	entries, err := index.Walk(root)
	if err != nil {
		return nil, tsyncerrors.IO(err)
	}
	return &Tree{Root: root, Single: !info.IsDir(), Entries: entries}, nil
}

// LocalSync synchronizes destRoot to match sourceRoot's content, entirely
// in-process: destRoot is indexed, sourceRoot is diffed against that index,
// and the resulting delta is applied back onto destRoot. No wire format is
// involved, since both trees are already locally reachable.
func LocalSync(sourceRoot, destRoot string, cache *sigcache.Cache, sizes chunk.Sizes, verify bool) error {
	sourceTree, err := OpenTree(sourceRoot)
	if err != nil {
		return err
	}

	destTree, err := openOrEmptyTree(destRoot, sourceTree.Single)
	if err != nil {
		return err
	}

	_, destStore, err := BuildIndex(destTree, cache, sizes, false)
	if err != nil {
		return err
	}

	files, err := BuildDelta(sourceTree, destStore, uint32(sizes.Avg))
	if err != nil {
		return err
	}

	var digestIdx *block.Index
	if verify {
		digestIdx, _, err = BuildIndex(sourceTree, nil, sizes, true)
		if err != nil {
			return err
		}
	}

	resolver := patch.NewStoreResolver(destStore, OutputPaths(destTree))
	if err := ApplyDelta(destRoot, sourceTree.Single, files, resolver, digestIdx); err != nil {
		return err
	}

	return saveCache(cache)
}

// RemoteSyncOverEndpoint plays the source role of the sync protocol against
// a remote destination reachable through ep: it receives the destination's
// Index, diffs sourceRoot against it, sends the resulting Delta, and
// collects the destination's per-file Acks. Acks are advisory — a failed
// file does not abort the run — so every Ack is returned for the caller to
// report.
func RemoteSyncOverEndpoint(sourceRoot string, ep endpoint.Endpoint, cache *sigcache.Cache) ([]protocol.Ack, error) {
	sourceTree, err := OpenTree(sourceRoot)
	if err != nil {
		return nil, err
	}

	frame, err := ep.ReadFrame()
	if err != nil {
		return nil, tsyncerrors.IO(err)
	}
	if frame.Type != protocol.MessageIndex {
		return nil, tsyncerrors.Format(errors.Errorf("expected an index frame, got message type %d", frame.Type))
	}
	idx, err := protocol.ReceiveIndex(frame.Payload)
	if err != nil {
		return nil, err
	}

	files, err := BuildDelta(sourceTree, idx.Store(), idx.BlockSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := delta.Write(&buf, idx.BlockSize, files, nil); err != nil {
		return nil, tsyncerrors.Format(errors.Wrap(err, "unable to encode delta"))
	}
	if err := ep.WriteFrame(protocol.Frame{Type: protocol.MessageDelta, Payload: buf.Bytes()}); err != nil {
		return nil, tsyncerrors.IO(err)
	}

	acks := make([]protocol.Ack, 0, len(files))
	for range files {
		ackFrame, err := ep.ReadFrame()
		if err != nil {
			return acks, tsyncerrors.IO(err)
		}
		ack, err := protocol.ReadAck(ackFrame.Payload)
		if err != nil {
			return acks, err
		}
		acks = append(acks, ack)
	}

	return acks, saveCache(cache)
}

// ServeDestination plays the destination role of the sync protocol over rw,
// a single bidirectional stream such as an SSH subprocess pipe: it performs
// the version handshake, sends its own Index for root, receives the
// source's Delta, applies each file, and acknowledges each one back to the
// source in turn. A per-file apply failure is reported via Ack and does not
// abort processing of the remaining files, per the protocol's advisory Ack
// semantics.
func ServeDestination(root string, rw io.ReadWriter, cache *sigcache.Cache, sizes chunk.Sizes) error {
	if err := protocol.Handshake(rw); err != nil {
		return err
	}

	destTree, err := OpenTree(root)
	if err != nil {
		return err
	}

	idx, destStore, err := BuildIndex(destTree, cache, sizes, false)
	if err != nil {
		return err
	}
	if err := protocol.SendIndex(rw, idx); err != nil {
		return err
	}

	frame, err := protocol.ReadFrame(rw)
	if err != nil {
		return tsyncerrors.IO(err)
	}
	if frame.Type != protocol.MessageDelta {
		return tsyncerrors.Format(errors.Errorf("expected a delta frame, got message type %d", frame.Type))
	}
	_, files, err := protocol.ReceiveDeltaFile(frame.Payload)
	if err != nil {
		return err
	}

	resolver := patch.NewStoreResolver(destStore, OutputPaths(destTree))
	applier := patch.NewApplier(resolver)
	paths := OutputPaths(destTree)

	for i, file := range files {
		fileID := uint16(i)
		outputPath, known := paths[fileID]
		if !known {
			if destTree.Single {
				outputPath = root
			} else {
				outputPath = filepath.Join(root, filepath.FromSlash(file.Name))
				if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
					return tsyncerrors.IO(err)
				}
			}
		}

		ack := protocol.Ack{FileID: fileID, Outcome: protocol.AckSuccess}
		if err := applier.ApplyFile(fileID, outputPath, file.Instructions, nil); err != nil {
			ack.Outcome = protocol.AckFailure
			ack.Detail = err.Error()
		}
		if err := protocol.WriteAck(rw, ack); err != nil {
			return tsyncerrors.IO(err)
		}
	}

	return saveCache(cache)
}

// PullZsync reconstructs outputPath from dataURL using the zsync model: the
// whole index is fetched from indexURL with an ordinary GET, and then each
// of its blocks is satisfied either from a local old copy at oldRoot (if
// its content-defined chunking happens to reproduce a matching block, it
// costs nothing to download) or, failing that, an HTTP Range request
// against dataURL. There is no sync-aware process on the source side: the
// source is just a static file and an index sitting on a web server.
func PullZsync(indexURL, dataURL, oldRoot, outputPath string, cache *sigcache.Cache) error {
	response, err := http.Get(indexURL)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to fetch remote index"))
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return tsyncerrors.IO(errors.Errorf("unexpected HTTP status fetching index: %s", response.Status))
	}

	idx, err := block.Read(response.Body)
	if err != nil {
		return tsyncerrors.Format(errors.Wrap(err, "unable to decode remote index"))
	}

	// Rehashing the local old copy with chunk.SizesFromTarget(idx.BlockSize)
	// only reproduces the remote's cut points if it was itself built with
	// that same target average; absent a way to ship the full Sizes triple
	// over HTTP, this is the index format's only signal of what to use.
	var resolver patch.KnownResolver
	if oldRoot != "" {
		if oldTree, statErr := OpenTree(oldRoot); statErr == nil {
			_, oldStore, buildErr := BuildIndex(oldTree, cache, chunk.SizesFromTarget(int(idx.BlockSize)), false)
			if buildErr != nil {
				return buildErr
			}
			resolver = patch.NewStoreResolver(oldStore, OutputPaths(oldTree))
		}
	}

	dataSource := httpendpoint.New(dataURL)

	directoryMode := len(idx.Files) > 1
	if directoryMode {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return tsyncerrors.IO(err)
		}
	}

	for _, manifest := range idx.Files {
		path := outputPath
		if directoryMode {
			path = filepath.Join(outputPath, filepath.FromSlash(manifest.Path))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return tsyncerrors.IO(err)
			}
		}
		if err := pullFile(idx, manifest, resolver, dataSource, path); err != nil {
			return errors.Wrapf(err, "unable to pull %q", manifest.Path)
		}
	}

	return saveCache(cache)
}

// pullFile reconstructs a single manifest entry's bytes, writing them
// atomically to path.
func pullFile(idx *block.Index, manifest block.Manifest, resolver patch.KnownResolver, dataSource *httpendpoint.Endpoint, path string) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), ".tsync-pull-*")
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to create temporary output file"))
	}
	tempPath := temporary.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			temporary.Close()
			os.Remove(tempPath)
		}
	}()

	var offset int64
	for i := manifest.HashStart; i < manifest.HashEnd; i++ {
		h := idx.Hashes[i]

		var data []byte
		if resolver != nil {
			if resolved, err := resolver.ResolveKnown(h.Weak, h.Strong); err == nil {
				data = resolved
			}
		}
		if data == nil {
			data, err = dataSource.ReadBytes(offset, int(h.Length))
			if err != nil {
				return tsyncerrors.IO(errors.Wrap(err, "unable to fetch remote byte range"))
			}
		}

		if _, err := temporary.Write(data); err != nil {
			return tsyncerrors.IO(errors.Wrap(err, "unable to write reconstructed data"))
		}
		offset += int64(h.Length)
	}

	if digest, ok := idx.DigestFor(manifest.FileID); ok {
		if err := verifyFileDigest(tempPath, digest); err != nil {
			return err
		}
	}

	if err := temporary.Close(); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to close temporary output file"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to rename temporary output file into place"))
	}
	succeeded = true
	return nil
}

// verifyFileDigest recomputes the whole-file SHA-1 of the file at path and
// compares it against expected, failing with a VerifyError on mismatch.
func verifyFileDigest(path string, expected block.Strong) error {
	file, err := os.Open(path)
	if err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to open file for verification"))
	}
	defer file.Close()

	hasher := sha1.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return tsyncerrors.IO(errors.Wrap(err, "unable to hash file for verification"))
	}
	var actual block.Strong
	copy(actual[:], hasher.Sum(nil))
	if actual != expected {
		return tsyncerrors.Verify(errors.New("whole-file verification hash mismatch"))
	}
	return nil
}
