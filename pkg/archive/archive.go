// Package archive packs mod directories into transferable zip files and
// extracts received ones. Packing is deterministic: entries are written in
// ordinal path order with a fixed timestamp, so an unchanged tree always
// produces byte-identical archives and therefore the same content digest.
package archive

import (
	stdzip "archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/fsutil"
	"github.com/mholt/archives"
)

// entryTime is the fixed timestamp stamped on every archive entry.
var entryTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Manager handles archive creation and extraction operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// fixedInfo normalizes the metadata of an archive entry so that repeated
// exports of unchanged content are byte-identical.
type fixedInfo struct {
	fs.FileInfo
}

func (fi fixedInfo) ModTime() time.Time { return entryTime }
func (fi fixedInfo) Mode() fs.FileMode  { return fsutil.FileModeDefault }

// Pack archives sourceDir into a zip at outPath. Files are added in ordinal
// order of their forward-slash relative paths. Symlinks are rejected; mod
// package content is plain files only. The output is written to a temp file
// and moved into place so cancellation never leaves a partial archive behind.
func (am *Manager) Pack(ctx context.Context, sourceDir, outPath string) error {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return errors.Wrapf(err, "failed to get absolute path for %s", sourceDir)
	}

	var relPaths []string
	infos := make(map[string]fs.FileInfo)
	err = filepath.WalkDir(absSource, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return errors.Wrapf(errors.ErrInvalidPath, "symlink %s is not allowed in a mod package", path)
		}
		rel, relErr := filepath.Rel(absSource, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		slashRel := filepath.ToSlash(rel)
		relPaths = append(relPaths, slashRel)
		infos[slashRel] = info
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to enumerate %s", sourceDir)
	}

	sort.Slice(relPaths, func(i, j int) bool {
		return strings.Compare(relPaths[i], relPaths[j]) < 0
	})

	archiveFiles := make([]archives.FileInfo, 0, len(relPaths))
	for _, rel := range relPaths {
		abs := filepath.Join(absSource, filepath.FromSlash(rel))
		archiveFiles = append(archiveFiles, archives.FileInfo{
			FileInfo:      fixedInfo{infos[rel]},
			NameInArchive: rel,
			Open: func() (fs.File, error) {
				return os.Open(abs)
			},
		})
	}

	if err := fsutil.EnsureFileDir(outPath); err != nil {
		return errors.Wrap(err, "could not create output directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), "pack-*.tmp")
	if err != nil {
		return errors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	format := archives.Zip{Compression: stdzip.Deflate}
	if err := format.Archive(ctx, tmp, archiveFiles); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to create archive for %s", sourceDir)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "could not sync archive")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "could not close archive")
	}
	if err := fsutil.Move(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "could not finalize archive")
	}
	return nil
}

// ExtractAll extracts all files from an archive to the destination directory.
// Entries escaping destDir or carrying link targets are rejected.
func (am *Manager) ExtractAll(ctx context.Context, archivePath, destDir string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return errors.Wrap(err, "failed to open archive file")
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := fsutil.EnsureDir(destDir); err != nil {
		return errors.Wrap(err, "failed to create destination directory")
	}

	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		return am.extractEntry(fsys, path, destDir, d)
	})
}

func (am *Manager) extractEntry(fsys fs.FS, path, destDir string, d fs.DirEntry) error {
	if path == "." {
		return nil
	}

	targetPath := filepath.Join(destDir, filepath.FromSlash(path))
	cleanDest := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(targetPath)+string(os.PathSeparator), cleanDest) {
		return errors.Wrapf(errors.ErrInvalidPath, "archive entry %s escapes destination", path)
	}

	if d.IsDir() {
		return fsutil.EnsureDir(targetPath)
	}

	info, err := d.Info()
	if err != nil {
		return errors.Wrapf(err, "failed to get file info for %s", path)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.Wrapf(errors.ErrInvalidPath, "archive entry %s is a symlink", path)
	}

	srcFile, err := fsys.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive entry %s", path)
	}
	defer func() { _ = srcFile.Close() }()

	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return errors.Wrapf(err, "failed to create parent directory for %s", path)
	}
	dstFile, err := fsutil.CreateFilePerm(targetPath, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrapf(err, "failed to create destination file %s", targetPath)
	}
	defer func() { _ = dstFile.Close() }()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Wrapf(err, "failed to extract %s", path)
	}
	return nil
}
