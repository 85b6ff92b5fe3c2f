package index

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Walk produces entries for every regular file under root, in
// depth-first, lexically sorted traversal order — the order in which
// file_ids get assigned, and the order BACKREFs across files must agree
// on between indexer and delta builder. Symlinks are not followed.
func Walk(root string) ([]Entry, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat root")
	}
	if !info.IsDir() {
		rel := filepath.Base(root)
		return []Entry{fileEntry(root, rel, info)}, nil
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry(path, filepath.ToSlash(rel), info))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to walk tree")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func fileEntry(absolute, relative string, info os.FileInfo) Entry {
	return Entry{
		Path:    relative,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(absolute)
		},
	}
}
