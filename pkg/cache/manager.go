// Package cache implements the content-addressed local package store. One
// backing file per unique digest; storing an already-present digest is a
// no-op, so identical packages are never duplicated on disk.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/fsutil"
	"github.com/glorpus-work/modshare/pkg/hash"
)

const packageSuffix = ".zip"

// Record maps a digest to its locally resolvable backing file. The cache
// exclusively owns record lifetime; callers reference records by digest only.
type Record struct {
	Digest string
	Path   string
}

// Manager implements the package cache over a single directory.
type Manager struct {
	directory string
}

// NewManager creates a cache manager rooted at directory.
func NewManager(directory string) *Manager {
	return &Manager{directory: directory}
}

// NewDefaultManager creates a cache manager under the user cache directory.
func NewDefaultManager() (*Manager, error) {
	cacheDir, err := fsutil.GetCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user cache directory")
	}
	dir := filepath.Join(cacheDir, "packages")
	if err := os.MkdirAll(dir, fsutil.DirModeSecure); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}
	return NewManager(dir), nil
}

// GetDirectory returns the cache directory path.
func (m *Manager) GetDirectory() string {
	return m.directory
}

// path returns the backing file location for a digest.
func (m *Manager) path(digest string) string {
	return filepath.Join(m.directory, digest+packageSuffix)
}

// Lookup returns the record for a digest, or nil if the digest has no backing
// file. Never touches the network.
func (m *Manager) Lookup(digest string) *Record {
	if digest == "" {
		return nil
	}
	path := m.path(digest)
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		return nil
	}
	return &Record{Digest: digest, Path: path}
}

// Store materializes sourcePath in the cache under digest. If a record with a
// present backing file already exists it is returned unchanged without any
// I/O. The source's bytes are verified against the digest before the record
// becomes visible; the copy goes through a temp file so a failed or
// interrupted store never leaves a record pointing at partial content.
func (m *Manager) Store(digest, sourcePath string) (*Record, error) {
	if digest == "" {
		return nil, errors.Wrap(errors.ErrValidation, "digest cannot be empty")
	}
	if existing := m.Lookup(digest); existing != nil {
		return existing, nil
	}

	actual, err := hash.File(sourcePath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to hash %s: %v", sourcePath, err)
	}
	if actual != digest {
		return nil, errors.Wrapf(errors.ErrHashMismatch, "source %s hashes to %s, expected %s", sourcePath, actual, digest)
	}

	if err := os.MkdirAll(m.directory, fsutil.DirModeSecure); err != nil {
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to create cache directory: %v", err)
	}
	tmp, err := os.CreateTemp(m.directory, "store-*.tmp")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to create temp file: %v", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := fsutil.Copy(sourcePath, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to copy %s into cache: %v", sourcePath, err)
	}
	dest := m.path(digest)
	if err := fsutil.Move(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to finalize cache entry: %v", err)
	}
	return &Record{Digest: digest, Path: dest}, nil
}

// StagingPath returns a location inside the cache directory where a download
// for digest may be assembled before being promoted to a record.
func (m *Manager) StagingPath(digest string) string {
	return filepath.Join(m.directory, digest+".partial")
}

// Promote turns a fully written staging file into the record for digest after
// verifying its bytes.
func (m *Manager) Promote(digest, stagedPath string) (*Record, error) {
	actual, err := hash.File(stagedPath)
	if err != nil {
		_ = os.Remove(stagedPath)
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to hash staged file: %v", err)
	}
	if actual != digest {
		_ = os.Remove(stagedPath)
		return nil, errors.Wrapf(errors.ErrHashMismatch, "downloaded bytes hash to %s, expected %s", actual, digest)
	}
	dest := m.path(digest)
	if err := fsutil.Move(stagedPath, dest); err != nil {
		_ = os.Remove(stagedPath)
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to finalize downloaded entry: %v", err)
	}
	return &Record{Digest: digest, Path: dest}, nil
}

// Ensure returns the record for digest, invoking fetch to assemble the bytes
// in a staging file when the cache has none. The staged bytes are verified
// against digest before the record becomes visible.
func (m *Manager) Ensure(ctx context.Context, digest string, fetch func(ctx context.Context, stagedPath string) error) (*Record, error) {
	if rec := m.Lookup(digest); rec != nil {
		return rec, nil
	}
	if err := os.MkdirAll(m.directory, fsutil.DirModeSecure); err != nil {
		return nil, errors.Wrapf(errors.ErrCacheWrite, "failed to create cache directory: %v", err)
	}
	staged := m.StagingPath(digest)
	if err := fetch(ctx, staged); err != nil {
		_ = os.Remove(staged)
		return nil, err
	}
	return m.Promote(digest, staged)
}

// Release deletes the record's backing file and forgets the record. Used to
// clean up transient packaging artifacts created solely to compute a digest
// before upload; the caller is responsible for knowing a record is transient.
func (m *Manager) Release(record *Record) error {
	if record == nil {
		return nil
	}
	if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to release cache entry %s", record.Digest)
	}
	return nil
}

// Info describes the cache contents.
type Info struct {
	Directory string
	TotalSize int64
	Files     int
}

// GetInfo returns size and file-count information about the cache.
func (m *Manager) GetInfo() (*Info, error) {
	info := &Info{Directory: m.directory}
	if _, err := os.Stat(m.directory); os.IsNotExist(err) {
		return info, nil
	}
	err := filepath.Walk(m.directory, func(_ string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !fi.IsDir() {
			info.TotalSize += fi.Size()
			info.Files++
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error walking cache directory %s", m.directory)
	}
	return info, nil
}

// Clean removes every cached package and returns the bytes freed. Stale
// staging files older than an hour are removed as well.
func (m *Manager) Clean() (int64, error) {
	info, err := m.GetInfo()
	if err != nil {
		return 0, err
	}
	if info.Files == 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(m.directory)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read cache directory %s", m.directory)
	}
	cutoff := time.Now().Add(-time.Hour)
	var freed int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if filepath.Ext(entry.Name()) == ".partial" && fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.directory, entry.Name())); err != nil {
			return freed, errors.Wrapf(err, "failed to remove %s", entry.Name())
		}
		freed += fi.Size()
	}
	return freed, nil
}
