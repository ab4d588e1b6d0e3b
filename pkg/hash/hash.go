// Package hash computes the content digests used as package addresses. File
// digests are SHA-256 over raw bytes; directory digests fold per-file digests
// into a single running hash in a fixed order so the result is independent of
// file system enumeration order and platform.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glorpus-work/modshare/pkg/errors"
)

// Reader hashes a stream and returns the hex-encoded digest.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "hashing stream")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File hashes a file's raw bytes. Deterministic for identical bytes regardless
// of file system metadata.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for hashing", path)
	}
	defer func() { _ = f.Close() }()
	return Reader(f)
}

// Directory fingerprints the current content of a directory tree. All files
// under root are listed, sorted by the ordinal byte value of their
// forward-slash relative path, and folded into one running digest as
// "<relpath>|<length>|<filehash>\n" lines.
func Directory(root string) (string, error) {
	type fileLine struct {
		relPath string
		size    int64
		abs     string
	}

	var files []fileLine
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		files = append(files, fileLine{
			relPath: filepath.ToSlash(rel),
			size:    info.Size(),
			abs:     path,
		})
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to walk %s", root)
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.Compare(files[i].relPath, files[j].relPath) < 0
	})

	running := sha256.New()
	for _, f := range files {
		fileDigest, hashErr := File(f.abs)
		if hashErr != nil {
			return "", hashErr
		}
		fmt.Fprintf(running, "%s|%d|%s\n", f.relPath, f.size, fileDigest)
	}
	return hex.EncodeToString(running.Sum(nil)), nil
}
