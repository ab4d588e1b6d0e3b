// Package upload implements the batch upload coordinator: it packages local
// mod trees, deduplicates them by content digest, pushes one upload per
// unique digest to the full recipient set and aggregates per-digest outcomes.
package upload

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/modshare/internal/logger"
	"github.com/glorpus-work/modshare/pkg/archive"
	"github.com/glorpus-work/modshare/pkg/cache"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/events"
	"github.com/glorpus-work/modshare/pkg/hash"
	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/glorpus-work/modshare/pkg/relay"
)

// Source is one local mod tree to upload.
type Source struct {
	// InstallFolderName identifies the mod locally and travels as the
	// receiver's install hint.
	InstallFolderName string

	// Path is the root of the mod's files on disk.
	Path string

	// Metadata carries display information; Digest, InstallFolderName and
	// FolderDigest are filled in by the coordinator.
	Metadata model.PackageEntry
}

// Options control one upload batch.
type Options struct {
	// KeepCacheEntries retains cache records created for this batch. When
	// false, records that did not exist before the batch are released once
	// the batch finishes.
	KeepCacheEntries bool
}

// Result is the outcome of one batch.
type Result struct {
	*model.BatchUploadResult

	// Entries are the successfully uploaded packages, one per unique digest,
	// in the order their sources were given.
	Entries []model.PackageEntry

	// FolderNames maps each digest to every originating install folder name,
	// retained for display even when deduplication collapsed uploads.
	FolderNames map[string][]string

	UploadedBytes int64
	TotalBytes    int64
}

// BatchError reports the digests that hard-failed an upload batch.
type BatchError struct {
	Result *Result
}

func (e *BatchError) Error() string {
	failures := e.Result.HardFailures()
	sort.Strings(failures)
	return fmt.Sprintf("upload batch failed for %d package(s): %s", len(failures), strings.Join(failures, ", "))
}

// Coordinator runs upload batches. Exactly one batch may be in flight per
// coordinator; concurrent starts are rejected with ErrBusy.
type Coordinator struct {
	client        relay.Client
	cache         *cache.Manager
	archiver      *archive.Manager
	bus           *events.Broadcaster
	maxUploadSize int64

	mu     sync.Mutex
	active bool
}

// New creates an upload coordinator.
func New(client relay.Client, cacheMgr *cache.Manager, archiver *archive.Manager, bus *events.Broadcaster, maxUploadSize int64) *Coordinator {
	if maxUploadSize <= 0 {
		maxUploadSize = int64(1) << 30
	}
	return &Coordinator{
		client:        client,
		cache:         cacheMgr,
		archiver:      archiver,
		bus:           bus,
		maxUploadSize: maxUploadSize,
	}
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return errors.ErrBusy
	}
	c.active = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// exportPath returns the stable location of the packaged file for a folder.
func (c *Coordinator) exportPath(folderName string) string {
	return filepath.Join(c.cache.GetDirectory(), "exports", folderName+".zip")
}

// resolvePackageFile returns the packaged archive for a source plus the
// source tree's folder digest. A previous export is reused only when the
// folder digest recorded at pack time still matches the tree, so added,
// changed and removed files all force a repack.
func (c *Coordinator) resolvePackageFile(ctx context.Context, src Source) (string, string, error) {
	out := c.exportPath(src.InstallFolderName)

	folderDigest, err := hash.Directory(src.Path)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to inspect source tree %s", src.Path)
	}
	if st, statErr := os.Stat(out); statErr == nil && st.Size() > 0 {
		if recorded, readErr := os.ReadFile(out + ".digest"); readErr == nil && string(recorded) == folderDigest {
			logger.Debug("reusing existing export", logger.Fields{"folder": src.InstallFolderName})
			return out, folderDigest, nil
		}
	}

	if err := c.archiver.Pack(ctx, src.Path, out); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(out+".digest", []byte(folderDigest), 0o644); err != nil {
		logger.Warn("failed to record export digest",
			logger.Fields{"folder": src.InstallFolderName, "error": err})
	}
	return out, folderDigest, nil
}

type preparedUpload struct {
	digest   string
	path     string
	size     int64
	metadata model.PackageEntry
}

// UploadBatch packages all sources, deduplicates them by digest and uploads
// each unique digest once against the full recipient set. Oversized packages
// are skipped without failing the batch; any other per-digest failure fails
// the batch with a BatchError enumerating the offending digests.
func (c *Coordinator) UploadBatch(ctx context.Context, sources []Source, recipients []string, opts Options) (*Result, error) {
	if len(recipients) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "recipient set cannot be empty")
	}
	if len(sources) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "no sources to upload")
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	result := &Result{
		BatchUploadResult: model.NewBatchUploadResult(),
		FolderNames:       make(map[string][]string),
	}

	// Phase 1: package and hash every source, collapsing digest duplicates.
	var order []string
	prepared := make(map[string]*preparedUpload)
	var transient []*cache.Record
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pkgFile, folderDigest, err := c.resolvePackageFile(ctx, src)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to package %s", src.InstallFolderName)
		}
		digest, err := hash.File(pkgFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to hash package for %s", src.InstallFolderName)
		}

		result.FolderNames[digest] = append(result.FolderNames[digest], src.InstallFolderName)
		if _, seen := prepared[digest]; seen {
			logger.Debug("digest already scheduled, skipping duplicate upload",
				logger.Fields{"digest": digest, "folder": src.InstallFolderName})
			continue
		}

		st, err := os.Stat(pkgFile)
		if err != nil {
			result.LocallyMissing[digest] = struct{}{}
			continue
		}

		entry := src.Metadata
		entry.Digest = digest
		entry.InstallFolderName = src.InstallFolderName
		if entry.DisplayName == "" {
			entry.DisplayName = src.InstallFolderName
		}
		entry.FolderDigest = folderDigest

		if existing := c.cache.Lookup(digest); existing == nil {
			rec, storeErr := c.cache.Store(digest, pkgFile)
			if storeErr != nil {
				logger.Error("failed to store package in cache",
					logger.Fields{"digest": digest, "error": storeErr})
				result.Failed[digest] = struct{}{}
				continue
			}
			transient = append(transient, rec)
		}

		order = append(order, digest)
		prepared[digest] = &preparedUpload{digest: digest, path: pkgFile, size: st.Size(), metadata: entry}
		if st.Size() <= c.maxUploadSize {
			result.TotalBytes += st.Size()
		}
	}

	defer func() {
		if opts.KeepCacheEntries {
			return
		}
		for _, rec := range transient {
			if err := c.cache.Release(rec); err != nil {
				logger.Warn("failed to release transient cache entry",
					logger.Fields{"digest": rec.Digest, "error": err})
			}
		}
	}()

	// Phase 2: one upload per unique digest, sequentially.
	start := time.Now()
	c.publish(events.Event{Phase: events.PhaseUploadStarted, Total: result.TotalBytes})
	for _, digest := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := prepared[digest]

		if p.size > c.maxUploadSize {
			logger.Warn("package exceeds upload size limit, skipping",
				logger.Fields{"digest": digest, "size": p.size, "limit": c.maxUploadSize})
			result.SkippedTooLarge[digest] = struct{}{}
			continue
		}

		base := result.UploadedBytes
		forbidden, err := c.client.Upload(ctx, relay.UploadRequest{
			Digest:     digest,
			SourcePath: p.path,
			Recipients: recipients,
			Metadata:   p.metadata,
			Progress: func(transferred, _ int64) {
				c.publishProgress(base+transferred, result.TotalBytes, start)
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.classify(digest, err, result.BatchUploadResult)
			continue
		}
		if len(forbidden) > 0 {
			logger.Warn("relay rejected recipients",
				logger.Fields{"digest": digest, "recipients": forbidden})
			result.Forbidden[digest] = struct{}{}
			continue
		}

		result.UploadedBytes += p.size
		result.Entries = append(result.Entries, p.metadata)
		c.publishProgress(result.UploadedBytes, result.TotalBytes, start)
	}

	if result.HasHardFailure() {
		c.publish(events.Event{Phase: events.PhaseError, Msg: "upload batch failed"})
		return result, &BatchError{Result: result}
	}
	c.publish(events.Event{Phase: events.PhaseUploadDone, Transferred: result.UploadedBytes, Total: result.TotalBytes})
	return result, nil
}

// classify sorts one upload error into the batch outcome sets.
func (c *Coordinator) classify(digest string, err error, result *model.BatchUploadResult) {
	logger.Error("upload failed", logger.Fields{"digest": digest, "error": err})
	switch {
	case stderrors.Is(err, errors.ErrForbidden):
		result.Forbidden[digest] = struct{}{}
	case stderrors.Is(err, errors.ErrTooLarge):
		result.SkippedTooLarge[digest] = struct{}{}
	case stderrors.Is(err, errors.ErrLocallyMissing):
		result.LocallyMissing[digest] = struct{}{}
	default:
		result.Failed[digest] = struct{}{}
	}
}

func (c *Coordinator) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// publishProgress emits aggregate byte progress with a derived throughput
// estimate since batch start.
func (c *Coordinator) publishProgress(uploaded, total int64, start time.Time) {
	elapsed := time.Since(start).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(uploaded) / elapsed
	}
	var fraction float64
	if total > 0 {
		fraction = float64(uploaded) / float64(total)
	}
	c.publish(events.Event{
		Phase:       events.PhaseUploadProgress,
		Transferred: uploaded,
		Total:       total,
		Fraction:    fraction,
		Msg:         fmt.Sprintf("%.1f KiB/s", rate/1024),
	})
}
