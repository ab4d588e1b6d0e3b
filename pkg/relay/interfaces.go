//go:generate mockgen -destination=./mocks/client.go -package=mocks . Client

// Package relay implements the HTTP client for the relay server: package
// upload/download with byte-level progress and cooperative cancellation,
// backup records, and the per-account transfer history.
package relay

import (
	"context"

	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/google/uuid"
)

// ProgressFunc receives (transferred, total) byte counts during a transfer.
// Total is -1 when unknown. Callbacks are throttled by the client.
type ProgressFunc func(transferred, total int64)

// UploadRequest describes one package upload against a set of recipients.
type UploadRequest struct {
	Digest     string
	SourcePath string
	Recipients []string
	Metadata   model.PackageEntry
	Progress   ProgressFunc
}

// Client is the request/response contract the coordinators depend on. No call
// retries automatically; transient failures surface as ErrTransport for the
// caller to handle at a higher layer.
type Client interface {
	// Upload pushes package bytes and metadata to all recipients. It returns
	// the recipients the relay rejected; a non-empty list with a nil error
	// means the upload stored the bytes but not every recipient may fetch
	// them. Size rejections surface as ErrTooLarge.
	Upload(ctx context.Context, req UploadRequest) (forbiddenRecipients []string, err error)

	// Exists reports whether the relay holds bytes for the digest.
	Exists(ctx context.Context, digest string) (bool, error)

	// Download streams the package bytes for digest into destPath. On error
	// or cancellation the partially written file is removed; destPath exists
	// only after a complete download.
	Download(ctx context.Context, digest, destPath string, progress ProgressFunc) error

	// CreateBackup stores a named collection of package entries.
	CreateBackup(ctx context.Context, name string, entries []model.PackageEntry, isComplete bool) (*model.BackupSummary, error)

	// ListBackups returns all backup summaries for the account.
	ListBackups(ctx context.Context) ([]model.BackupSummary, error)

	// GetBackup fetches one backup by id; nil result for an unknown id.
	GetBackup(ctx context.Context, id uuid.UUID) (*model.Backup, error)

	// DeleteBackup removes a backup. Unknown ids are a no-op.
	DeleteBackup(ctx context.Context, id uuid.UUID) error

	// ListTransfers returns the pending inbound transfer notifications.
	ListTransfers(ctx context.Context) ([]model.TransferNotification, error)

	// AckTransfer acknowledges an inbound transfer back to its sender,
	// regardless of install outcome.
	AckTransfer(ctx context.Context, digest, senderID string) error
}
