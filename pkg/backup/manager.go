// Package backup manages named, server-stored collections of package entries
// and the restore pipeline that turns a backup back into installed mods.
package backup

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/glorpus-work/modshare/internal/logger"
	"github.com/glorpus-work/modshare/pkg/cache"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/events"
	"github.com/glorpus-work/modshare/pkg/hook"
	"github.com/glorpus-work/modshare/pkg/installer"
	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/glorpus-work/modshare/pkg/relay"
	"github.com/glorpus-work/modshare/pkg/resolve"
)

// RestoreEntryError halts a restore and names the entry that failed. Entries
// before it remain installed; entries after it were never attempted.
type RestoreEntryError struct {
	// Position is 1-based within the backup's stored entry order.
	Position int
	Name     string
	Err      error
}

func (e *RestoreEntryError) Error() string {
	return fmt.Sprintf("restore halted at entry %d (%s): %v", e.Position, e.Name, e.Err)
}

func (e *RestoreEntryError) Unwrap() error {
	return e.Err
}

// Manager implements backup CRUD against the relay plus the sequential
// restore pipeline. At most one mutating operation (create, delete, restore)
// runs per manager; concurrent starts are rejected with ErrBusy.
type Manager struct {
	client     relay.Client
	cache      *cache.Manager
	capability installer.Capability
	resolver   *resolve.Resolver
	hooks      hook.Manager
	bus        *events.Broadcaster

	mu     sync.Mutex
	active bool
}

// New creates a backup manager. hooks and bus may be nil.
func New(client relay.Client, cacheMgr *cache.Manager, capability installer.Capability, resolver *resolve.Resolver, hooks hook.Manager, bus *events.Broadcaster) *Manager {
	return &Manager{
		client:     client,
		cache:      cacheMgr,
		capability: capability,
		resolver:   resolver,
		hooks:      hooks,
		bus:        bus,
	}
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return errors.ErrBusy
	}
	m.active = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

// Create stores a named backup on the relay. IsComplete is false when any
// entry's digest could not be confirmed present on the relay; an existence
// probe failure counts as unconfirmed rather than failing the create.
func (m *Manager) Create(ctx context.Context, name string, entries []model.PackageEntry) (*model.BackupSummary, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrValidation, "backup name cannot be empty")
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "backup needs at least one entry")
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	isComplete := true
	for _, entry := range entries {
		present, err := m.client.Exists(ctx, entry.Digest)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("could not confirm package on relay",
				logger.Fields{"digest": entry.Digest, "error": err})
			isComplete = false
			continue
		}
		if !present {
			isComplete = false
		}
	}

	summary, err := m.client.CreateBackup(ctx, name, entries, isComplete)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create backup %q", name)
	}
	logger.Info("backup created", logger.Fields{
		"id": summary.ID, "name": name, "entries": len(entries), "complete": isComplete,
	})
	return summary, nil
}

// List returns all backup summaries for the account.
func (m *Manager) List(ctx context.Context) ([]model.BackupSummary, error) {
	return m.client.ListBackups(ctx)
}

// Get fetches one backup with its entries. Unknown ids return (nil, nil).
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*model.Backup, error) {
	return m.client.GetBackup(ctx, id)
}

// Delete removes a backup. Deleting an unknown id is a no-op.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	return m.client.DeleteBackup(ctx, id)
}

// Restore downloads and installs every entry of the backup in stored order.
// Already-cached digests skip the download. The first entry that fails halts
// the restore with a RestoreEntryError; previously restored entries stay
// installed.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	b, err := m.client.GetBackup(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch backup %s", id)
	}
	if b == nil {
		return errors.Wrapf(errors.ErrNotFound, "backup %s", id)
	}
	if len(b.Entries) == 0 {
		return nil
	}

	// Snapshot the install target once; the resolver is pure over it.
	snapshot, err := installer.Snapshot(ctx, m.capability)
	if err != nil {
		return errors.Wrap(err, "failed to snapshot installed packages")
	}
	diskFolders, installRoot := m.listDiskFolders(ctx)

	m.runHook(hook.PreRestore, hook.Context{InstallRoot: installRoot, Vars: map[string]interface{}{
		"backup_name": b.Name, "entry_count": len(b.Entries),
	}})

	total := len(b.Entries)
	for i, entry := range b.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.publishProgress(i, 0, total, entry.DisplayName)

		if err := m.restoreEntry(ctx, entry, snapshot, diskFolders, installRoot, i, total); err != nil {
			m.publish(events.Event{Phase: events.PhaseError, Digest: entry.Digest, Msg: err.Error()})
			return &RestoreEntryError{Position: i + 1, Name: entry.DisplayName, Err: err}
		}
	}

	m.runHook(hook.PostRestore, hook.Context{InstallRoot: installRoot, Vars: map[string]interface{}{
		"backup_name": b.Name, "entry_count": len(b.Entries),
	}})
	m.publish(events.Event{Phase: events.PhaseDone, Msg: fmt.Sprintf("restored %d entries", total)})
	logger.Info("backup restored", logger.Fields{"id": id, "entries": total})
	return nil
}

// restoreEntry downloads one entry into the cache if needed, resolves its
// install folder and delegates to the install capability.
func (m *Manager) restoreEntry(ctx context.Context, entry model.PackageEntry, snapshot []model.InstalledPackage, diskFolders []string, installRoot string, index, total int) error {
	rec, err := m.cache.Ensure(ctx, entry.Digest, func(ctx context.Context, staged string) error {
		return m.client.Download(ctx, entry.Digest, staged, func(transferred, totalBytes int64) {
			var fraction float64
			if totalBytes > 0 {
				// Download is the first half of an entry's work.
				fraction = float64(transferred) / float64(totalBytes) / 2
			}
			m.publishProgress(index, fraction, total, entry.DisplayName)
		})
	})
	if err != nil {
		return errors.Wrapf(err, "download of %s failed", entry.Digest)
	}

	folderName := m.resolver.Resolve(model.HintsFromEntry(&entry), snapshot, diskFolders)
	logger.Debug("resolved restore target",
		logger.Fields{"digest": entry.Digest, "folder": folderName})

	err = m.capability.Install(ctx, folderName, rec.Path, func(fraction float64) {
		m.publishProgress(index, 0.5+fraction/2, total, entry.DisplayName)
	})
	if err != nil {
		return errors.Wrapf(err, "install into %s failed", folderName)
	}
	m.publishProgress(index+1, 0, total, entry.DisplayName)
	return nil
}

// listDiskFolders enumerates folder names under the install root, best-effort.
func (m *Manager) listDiskFolders(ctx context.Context) ([]string, string) {
	root, err := m.capability.GetInstallRoot(ctx)
	if err != nil || root == "" {
		return nil, ""
	}
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		logger.Debug("could not read install root", logger.Fields{"root": root, "error": err})
		return nil, root
	}
	var folders []string
	for _, de := range dirEntries {
		if de.IsDir() {
			folders = append(folders, de.Name())
		}
	}
	return folders, root
}

func (m *Manager) runHook(hookType hook.Type, hookCtx hook.Context) {
	if m.hooks == nil {
		return
	}
	if err := m.hooks.Execute(hookType, hookCtx); err != nil {
		logger.Warn("hook failed", logger.Fields{"type": hookType, "error": err})
	}
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// publishProgress reports (completed + currentFraction) / total.
func (m *Manager) publishProgress(completed int, currentFraction float64, total int, name string) {
	m.publish(events.Event{
		Phase:      events.PhaseRestoreProgress,
		FolderName: name,
		Fraction:   (float64(completed) + currentFraction) / float64(total),
	})
}
