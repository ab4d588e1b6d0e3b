package installer

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/modshare/pkg/archive"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/fsutil"
)

// metadataFile is read from a mod folder when the host manager keeps one.
const metadataFile = "modinfo.yaml"

// LocalCapability installs mods into a plain directory tree. It stands in for
// a host mod manager when none is attached: one subdirectory per mod, with an
// optional modinfo.yaml carrying display metadata.
type LocalCapability struct {
	root     string
	archiver *archive.Manager
}

// NewLocalCapability creates a capability rooted at dir.
func NewLocalCapability(dir string, archiver *archive.Manager) (*LocalCapability, error) {
	if dir == "" {
		return nil, errors.Wrap(errors.ErrValidation, "install root cannot be empty")
	}
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return nil, errors.Wrapf(err, "failed to create install root %s", dir)
	}
	return &LocalCapability{root: dir, archiver: archiver}, nil
}

// ListMods enumerates the mod folder names under the install root.
func (c *LocalCapability) ListMods(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read install root %s", c.root)
	}
	var mods []string
	for _, de := range dirEntries {
		if de.IsDir() {
			mods = append(mods, de.Name())
		}
	}
	return mods, nil
}

// ModExists reports whether a mod folder is present.
func (c *LocalCapability) ModExists(_ context.Context, folderName string) (bool, error) {
	st, err := os.Stat(filepath.Join(c.root, folderName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat mod folder %s", folderName)
	}
	return st.IsDir(), nil
}

// GetMetadata reads the mod's modinfo.yaml. Folders without one yield nil.
func (c *LocalCapability) GetMetadata(_ context.Context, folderName string) (*ModMetadata, error) {
	data, err := os.ReadFile(filepath.Join(c.root, folderName, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read metadata for %s", folderName)
	}
	var meta ModMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "malformed %s in %s", metadataFile, folderName)
	}
	return &meta, nil
}

// GetInstallRoot returns the directory mods are installed under.
func (c *LocalCapability) GetInstallRoot(_ context.Context) (string, error) {
	return c.root, nil
}

// Install extracts the package archive into the mod folder. The extraction
// goes into a temp sibling directory first so a failed install never leaves a
// half-written mod folder behind.
func (c *LocalCapability) Install(ctx context.Context, folderName, packagePath string, progress ProgressFunc) error {
	if progress != nil {
		progress(0)
	}
	staging, err := os.MkdirTemp(c.root, ".install-*")
	if err != nil {
		return errors.Wrap(err, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := c.archiver.ExtractAll(ctx, packagePath, staging); err != nil {
		return errors.Wrapf(err, "failed to extract %s", packagePath)
	}
	if progress != nil {
		progress(0.5)
	}

	target := filepath.Join(c.root, folderName)
	if err := os.RemoveAll(target); err != nil {
		return errors.Wrapf(err, "failed to replace mod folder %s", folderName)
	}
	if err := fsutil.Move(staging, target); err != nil {
		return errors.Wrapf(err, "failed to finalize mod folder %s", folderName)
	}
	if progress != nil {
		progress(1)
	}
	return nil
}
