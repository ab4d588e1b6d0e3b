// Package queue holds the inbound transfer notifications and drives the
// one-at-a-time install pipeline over them. All mutation of the pending,
// selection and queued collections happens under a single lock; long-running
// work (downloads, installs, status probes) runs against read-only snapshots.
package queue

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	version "github.com/hashicorp/go-version"

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

// State is the lifecycle state of one notification.
type State string

// Notification states.
const (
	StatePending    State = "pending"
	StateQueued     State = "queued"
	StateInstalling State = "installing"
	StateFailed     State = "failed"
)

// InstalledStatus is advisory display data computed by the background status
// refresh. It never influences queue transitions.
type InstalledStatus struct {
	Installed        bool
	InstalledVersion string
	UpdateAvailable  bool
}

// Item is a read-only snapshot of one queued notification.
type Item struct {
	Notification model.TransferNotification
	State        State
	Selected     bool
	FailureMsg   string
	ArrivedAt    time.Time
	Status       *InstalledStatus
}

type entry struct {
	notification model.TransferNotification
	state        State
	selected     bool
	failureMsg   string
	arrivedAt    time.Time
}

// Queue is the install queue over inbound transfers. One batch runs at a
// time; concurrent batch starts are rejected with ErrBusy.
type Queue struct {
	client     relay.Client
	cache      *cache.Manager
	capability installer.Capability
	resolver   *resolve.Resolver
	hooks      hook.Manager
	bus        *events.Broadcaster

	mu          sync.Mutex
	pending     []*entry
	byDigest    map[string]*entry
	batchActive bool
	status      map[string]InstalledStatus
}

// New creates an empty install queue. hooks and bus may be nil.
func New(client relay.Client, cacheMgr *cache.Manager, capability installer.Capability, resolver *resolve.Resolver, hooks hook.Manager, bus *events.Broadcaster) *Queue {
	return &Queue{
		client:     client,
		cache:      cacheMgr,
		capability: capability,
		resolver:   resolver,
		hooks:      hooks,
		bus:        bus,
		byDigest:   make(map[string]*entry),
		status:     make(map[string]InstalledStatus),
	}
}

// Add inserts an arrived notification into the pending set. A digest that is
// already pending is rejected with ErrAlreadyPending.
func (q *Queue) Add(notification model.TransferNotification) error {
	if notification.Digest == "" {
		return errors.Wrap(errors.ErrValidation, "notification digest cannot be empty")
	}
	q.mu.Lock()
	if _, exists := q.byDigest[notification.Digest]; exists {
		q.mu.Unlock()
		return errors.Wrapf(errors.ErrAlreadyPending, "digest %s", notification.Digest)
	}
	e := &entry{notification: notification, state: StatePending, arrivedAt: time.Now()}
	q.pending = append(q.pending, e)
	q.byDigest[notification.Digest] = e
	q.mu.Unlock()

	q.publish(events.Event{
		Phase:      events.PhaseTransferArrived,
		Digest:     notification.Digest,
		FolderName: notification.FolderName(),
		Msg:        notification.SenderDisplayHint,
	})
	return nil
}

// Sync pulls the pending transfer records from the relay into the queue.
// Digests already pending are kept as-is.
func (q *Queue) Sync(ctx context.Context) (int, error) {
	notifications, err := q.client.ListTransfers(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list transfers")
	}
	added := 0
	for _, n := range notifications {
		if err := q.Add(n); err == nil {
			added++
		}
	}
	return added, nil
}

// Items returns a snapshot of all pending notifications in insertion order,
// merged with the latest advisory install status.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]Item, 0, len(q.pending))
	for _, e := range q.pending {
		item := Item{
			Notification: e.notification,
			State:        e.state,
			Selected:     e.selected,
			FailureMsg:   e.failureMsg,
			ArrivedAt:    e.arrivedAt,
		}
		if st, ok := q.status[e.notification.FolderName()]; ok {
			stCopy := st
			item.Status = &stCopy
		}
		items = append(items, item)
	}
	return items
}

// Select toggles membership in the selection set. Selection is only
// meaningful while an item is pending; other states ignore the call.
func (q *Queue) Select(digest string, selected bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byDigest[digest]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "digest %s is not pending", digest)
	}
	if e.state == StatePending || e.state == StateFailed {
		e.selected = selected
	}
	return nil
}

// SelectAll marks every pending item selected.
func (q *Queue) SelectAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.pending {
		if e.state == StatePending || e.state == StateFailed {
			e.selected = true
		}
	}
}

// StartBatch queues every selected pending item in insertion order and
// processes them one at a time in the calling goroutine. Cancellation stops
// at the next per-item boundary: the current and all not-yet-processed items
// revert to pending.
func (q *Queue) StartBatch(ctx context.Context) error {
	q.mu.Lock()
	if q.batchActive {
		q.mu.Unlock()
		return errors.ErrBusy
	}
	queued := 0
	for _, e := range q.pending {
		if e.selected && (e.state == StatePending || e.state == StateFailed) {
			e.state = StateQueued
			e.failureMsg = ""
			queued++
		}
	}
	if queued == 0 {
		q.mu.Unlock()
		return errors.Wrap(errors.ErrValidation, "no items selected")
	}
	q.batchActive = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.batchActive = false
		q.mu.Unlock()
	}()

	for {
		e := q.dequeue()
		if e == nil {
			break
		}
		if err := ctx.Err(); err != nil {
			q.revert(e)
			q.revertQueued()
			return err
		}

		notification := e.notification
		q.publish(events.Event{Phase: events.PhaseInstallStarted, Digest: notification.Digest, FolderName: notification.FolderName()})
		err := q.installOne(ctx, notification)
		switch {
		case err == nil:
			q.remove(notification.Digest)
			q.publish(events.Event{Phase: events.PhaseInstalled, Digest: notification.Digest, FolderName: notification.FolderName()})
			q.ack(ctx, notification)
		case ctx.Err() != nil:
			q.revert(e)
			q.revertQueued()
			return ctx.Err()
		default:
			logger.Error("install failed",
				logger.Fields{"digest": notification.Digest, "error": err})
			q.fail(e, err)
			q.publish(events.Event{Phase: events.PhaseInstallFailed, Digest: notification.Digest, Msg: err.Error()})
		}
	}

	q.publish(events.Event{Phase: events.PhaseDone})
	return nil
}

// dequeue pops the first queued item and marks it installing.
func (q *Queue) dequeue() *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.pending {
		if e.state == StateQueued {
			e.state = StateInstalling
			return e
		}
	}
	return nil
}

func (q *Queue) revert(e *entry) {
	q.mu.Lock()
	e.state = StatePending
	q.mu.Unlock()
}

// revertQueued returns every still-queued item to pending after a cancel.
func (q *Queue) revertQueued() {
	q.mu.Lock()
	for _, e := range q.pending {
		if e.state == StateQueued {
			e.state = StatePending
		}
	}
	q.mu.Unlock()
}

func (q *Queue) fail(e *entry, err error) {
	q.mu.Lock()
	e.state = StateFailed
	e.selected = false
	e.failureMsg = err.Error()
	q.mu.Unlock()
}

func (q *Queue) remove(digest string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byDigest, digest)
	for i, e := range q.pending {
		if e.notification.Digest == digest {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// installOne fetches the package into the cache, resolves its install folder
// and delegates to the install capability.
func (q *Queue) installOne(ctx context.Context, notification model.TransferNotification) error {
	rec, err := q.cache.Ensure(ctx, notification.Digest, func(ctx context.Context, staged string) error {
		return q.client.Download(ctx, notification.Digest, staged, func(transferred, total int64) {
			q.publish(events.Event{
				Phase:       events.PhaseDownloadProgress,
				Digest:      notification.Digest,
				Transferred: transferred,
				Total:       total,
			})
		})
	})
	if err != nil {
		return errors.Wrapf(err, "download of %s failed", notification.Digest)
	}

	snapshot, err := installer.Snapshot(ctx, q.capability)
	if err != nil {
		return errors.Wrap(err, "failed to snapshot installed packages")
	}
	diskFolders, installRoot := q.listDiskFolders(ctx)

	folderName := q.resolver.Resolve(q.hints(notification), snapshot, diskFolders)
	logger.Debug("resolved install target",
		logger.Fields{"digest": notification.Digest, "folder": folderName})

	hookCtx := hook.Context{
		FolderName:  folderName,
		PackagePath: rec.Path,
		InstallRoot: installRoot,
	}
	if info := notification.PackageInfo; info != nil {
		hookCtx.PackageName = info.DisplayName
		hookCtx.PackageVersion = info.Version
	}
	q.runHook(hook.PreInstall, hookCtx)

	err = q.capability.Install(ctx, folderName, rec.Path, func(fraction float64) {
		q.publish(events.Event{
			Phase:      events.PhaseInstallProgress,
			Digest:     notification.Digest,
			FolderName: folderName,
			Fraction:   fraction,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "install into %s failed", folderName)
	}
	q.runHook(hook.PostInstall, hookCtx)
	return nil
}

// hints derives resolver hints from a notification, preferring the rich
// package metadata when the sender attached it.
func (q *Queue) hints(notification model.TransferNotification) model.ResolveHints {
	if notification.PackageInfo != nil {
		h := model.HintsFromEntry(notification.PackageInfo)
		if notification.InstallFolderName != "" {
			h.Name = notification.InstallFolderName
		}
		return h
	}
	return model.ResolveHints{Digest: notification.Digest, Name: notification.FolderName()}
}

// Discard removes notifications from the pending set and acknowledges them to
// their senders. Unknown digests yield ErrNotFound; items currently installing
// are left alone and reported with ErrBusy.
func (q *Queue) Discard(ctx context.Context, digests ...string) error {
	var discarded []model.TransferNotification
	var unknown, installing []string
	q.mu.Lock()
	for _, digest := range digests {
		e, ok := q.byDigest[digest]
		if !ok {
			unknown = append(unknown, digest)
			continue
		}
		if e.state == StateInstalling {
			installing = append(installing, digest)
			continue
		}
		delete(q.byDigest, digest)
		for i, p := range q.pending {
			if p == e {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
		discarded = append(discarded, e.notification)
	}
	q.mu.Unlock()

	for _, n := range discarded {
		q.ack(ctx, n)
		q.publish(events.Event{Phase: events.PhaseDiscarded, Digest: n.Digest})
	}
	if len(unknown) > 0 {
		return errors.Wrapf(errors.ErrNotFound, "no pending transfer for %s", strings.Join(unknown, ", "))
	}
	if len(installing) > 0 {
		return errors.Wrapf(errors.ErrBusy, "still installing %s", strings.Join(installing, ", "))
	}
	return nil
}

// ack acknowledges a transfer back to its sender, best-effort.
func (q *Queue) ack(ctx context.Context, notification model.TransferNotification) {
	if err := q.client.AckTransfer(ctx, notification.Digest, notification.SenderID); err != nil {
		logger.Warn("failed to acknowledge transfer",
			logger.Fields{"digest": notification.Digest, "sender": notification.SenderID, "error": err})
	}
}

// RefreshStatus recomputes the advisory installed/version status for every
// distinct folder name referenced by pending notifications. It reads external
// state only and never mutates queue transitions, so it is safe to run
// concurrently with an active batch.
func (q *Queue) RefreshStatus(ctx context.Context) {
	q.mu.Lock()
	type probe struct {
		folderName     string
		offeredVersion string
	}
	seen := make(map[string]struct{})
	var probes []probe
	for _, e := range q.pending {
		folderName := e.notification.FolderName()
		if folderName == "" {
			continue
		}
		if _, ok := seen[folderName]; ok {
			continue
		}
		seen[folderName] = struct{}{}
		p := probe{folderName: folderName}
		if info := e.notification.PackageInfo; info != nil {
			p.offeredVersion = info.Version
		}
		probes = append(probes, p)
	}
	q.mu.Unlock()

	results := make(map[string]InstalledStatus, len(probes))
	for _, p := range probes {
		if ctx.Err() != nil {
			return
		}
		exists, err := q.capability.ModExists(ctx, p.folderName)
		if err != nil {
			logger.Debug("status probe failed", logger.Fields{"folder": p.folderName, "error": err})
			continue
		}
		st := InstalledStatus{Installed: exists}
		if exists {
			if meta, metaErr := q.capability.GetMetadata(ctx, p.folderName); metaErr == nil && meta != nil {
				st.InstalledVersion = meta.Version
				st.UpdateAvailable = versionNewer(p.offeredVersion, meta.Version)
			}
		}
		results[p.folderName] = st
	}

	q.mu.Lock()
	for folderName, st := range results {
		q.status[folderName] = st
	}
	q.mu.Unlock()
}

// versionNewer reports whether offered is a strictly newer version than
// installed. Unparseable or missing versions report false.
func versionNewer(offered, installed string) bool {
	if offered == "" || installed == "" {
		return false
	}
	vo, errO := version.NewVersion(offered)
	vi, errI := version.NewVersion(installed)
	if errO != nil || errI != nil {
		return false
	}
	return vo.GreaterThan(vi)
}

// listDiskFolders enumerates folder names under the install root, best-effort.
func (q *Queue) listDiskFolders(ctx context.Context) ([]string, string) {
	root, err := q.capability.GetInstallRoot(ctx)
	if err != nil || root == "" {
		return nil, ""
	}
	dirEntries, err := os.ReadDir(root)
	if err != nil {
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

func (q *Queue) runHook(hookType hook.Type, hookCtx hook.Context) {
	if q.hooks == nil {
		return
	}
	if err := q.hooks.Execute(hookType, hookCtx); err != nil {
		logger.Warn("hook failed", logger.Fields{"type": hookType, "error": err})
	}
}

func (q *Queue) publish(e events.Event) {
	if q.bus != nil {
		q.bus.Publish(e)
	}
}
