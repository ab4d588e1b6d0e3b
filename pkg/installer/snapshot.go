package installer

import (
	"context"

	"github.com/glorpus-work/modshare/internal/logger"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/model"
)

// Snapshot materializes the installed-package list in one pass so the
// resolver and the status refresh can work on immutable data without further
// IPC. A metadata lookup failure marks the entry rather than dropping it.
func Snapshot(ctx context.Context, capability Capability) ([]model.InstalledPackage, error) {
	folders, err := capability.ListMods(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list installed mods")
	}

	snapshot := make([]model.InstalledPackage, 0, len(folders))
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, metaErr := capability.GetMetadata(ctx, folder)
		if metaErr != nil || meta == nil {
			if metaErr != nil {
				logger.Debug("metadata lookup failed", logger.Fields{"folder": folder, "error": metaErr})
			}
			snapshot = append(snapshot, model.InstalledPackage{
				FolderName:   folder,
				LookupFailed: true,
			})
			continue
		}
		snapshot = append(snapshot, model.InstalledPackage{
			FolderName:  folder,
			DisplayName: meta.Name,
			Author:      meta.Author,
			Version:     meta.Version,
		})
	}
	return snapshot, nil
}
