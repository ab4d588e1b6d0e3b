package model

// TransferNotification represents one inbound package offer. Created on
// arrival, held in the pending set, removed on install success or explicit
// discard; an install failure keeps it pending with a recorded status.
type TransferNotification struct {
	Digest            string        `json:"digest"`
	SenderID          string        `json:"sender_id"`
	SenderDisplayHint string        `json:"sender_display_hint"`
	InstallFolderName string        `json:"install_folder_name,omitempty"`
	PackageInfo       *PackageEntry `json:"package_info,omitempty"`
}

// FolderName returns the best folder-name hint carried by the notification.
func (n *TransferNotification) FolderName() string {
	if n.InstallFolderName != "" {
		return n.InstallFolderName
	}
	if n.PackageInfo != nil {
		return n.PackageInfo.InstallFolderName
	}
	return ""
}

// BatchUploadResult classifies the outcome of one upload batch per digest.
// Every submitted digest appears in at most one of the four sets; digests in
// none of them succeeded.
type BatchUploadResult struct {
	LocallyMissing  map[string]struct{}
	Forbidden       map[string]struct{}
	Failed          map[string]struct{}
	SkippedTooLarge map[string]struct{}
}

// NewBatchUploadResult returns an empty result.
func NewBatchUploadResult() *BatchUploadResult {
	return &BatchUploadResult{
		LocallyMissing:  make(map[string]struct{}),
		Forbidden:       make(map[string]struct{}),
		Failed:          make(map[string]struct{}),
		SkippedTooLarge: make(map[string]struct{}),
	}
}

// Merge folds other into r.
func (r *BatchUploadResult) Merge(other *BatchUploadResult) {
	if other == nil {
		return
	}
	for d := range other.LocallyMissing {
		r.LocallyMissing[d] = struct{}{}
	}
	for d := range other.Forbidden {
		r.Forbidden[d] = struct{}{}
	}
	for d := range other.Failed {
		r.Failed[d] = struct{}{}
	}
	for d := range other.SkippedTooLarge {
		r.SkippedTooLarge[d] = struct{}{}
	}
}

// HasHardFailure reports whether any digest failed in a way that fails the
// whole batch. SkippedTooLarge is non-fatal and only shrinks the effective
// entry set.
func (r *BatchUploadResult) HasHardFailure() bool {
	return len(r.LocallyMissing) > 0 || len(r.Forbidden) > 0 || len(r.Failed) > 0
}

// HardFailures returns all hard-failed digests for error reporting.
func (r *BatchUploadResult) HardFailures() []string {
	out := make([]string, 0, len(r.LocallyMissing)+len(r.Forbidden)+len(r.Failed))
	for d := range r.LocallyMissing {
		out = append(out, d)
	}
	for d := range r.Forbidden {
		out = append(out, d)
	}
	for d := range r.Failed {
		out = append(out, d)
	}
	return out
}

// Succeeded reports whether the given digest landed in none of the outcome
// sets.
func (r *BatchUploadResult) Succeeded(digest string) bool {
	if _, ok := r.LocallyMissing[digest]; ok {
		return false
	}
	if _, ok := r.Forbidden[digest]; ok {
		return false
	}
	if _, ok := r.Failed[digest]; ok {
		return false
	}
	if _, ok := r.SkippedTooLarge[digest]; ok {
		return false
	}
	return true
}
