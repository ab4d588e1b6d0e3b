package model

import (
	"time"

	"github.com/google/uuid"
)

// BackupSummary is the server-side header of a backup. IsComplete is true iff
// every entry's digest was present on the relay at creation time.
type BackupSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	EntryCount int       `json:"entry_count"`
	IsComplete bool      `json:"is_complete"`
	CreatedAt  time.Time `json:"created_at"`
}

// Backup is a summary plus its entries, fetched read-only by id.
type Backup struct {
	BackupSummary
	Entries []PackageEntry `json:"entries"`
}
