//go:generate mockgen -destination=./mocks/capability.go -package=mocks . Capability

// Package installer defines the contract to the external mod manager. The
// core never installs anything itself; it resolves a target folder name,
// hands over the package archive and observes progress.
package installer

import "context"

// ProgressFunc receives install completion in [0,1].
type ProgressFunc func(fraction float64)

// ModMetadata is what the mod manager knows about one installed mod.
type ModMetadata struct {
	Name        string
	Author      string
	Version     string
	Description string
	Website     string
}

// Capability is the install surface provided by the host mod manager.
type Capability interface {
	// ListMods enumerates the folder names of all installed mods.
	ListMods(ctx context.Context) ([]string, error)

	// ModExists reports whether a mod folder is present.
	ModExists(ctx context.Context, folderName string) (bool, error)

	// GetMetadata returns the metadata of an installed mod, or nil when the
	// mod manager has none for that folder.
	GetMetadata(ctx context.Context, folderName string) (*ModMetadata, error)

	// GetInstallRoot returns the directory mods are installed under, if known.
	GetInstallRoot(ctx context.Context) (string, error)

	// Install unpacks the package archive into the given folder, reporting
	// progress and honoring cancellation.
	Install(ctx context.Context, folderName, packagePath string, progress ProgressFunc) error
}
