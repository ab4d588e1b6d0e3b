// Package testutil provides an in-memory relay server for tests. It speaks
// the same endpoints as a real relay but keeps everything in maps guarded by
// one mutex.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/google/uuid"
)

// RelayServer is a fake relay backed by httptest.
type RelayServer struct {
	mu sync.Mutex

	packages map[string][]byte
	metadata map[string]model.PackageEntry
	backups  map[uuid.UUID]*model.Backup

	// Transfers is served verbatim by GET /v1/transfers.
	Transfers []model.TransferNotification

	// Acked records every acknowledged digest in order.
	Acked []string

	// ForbiddenRecipients are rejected on every upload.
	ForbiddenRecipients []string

	// MaxPackageSize, when non-zero, makes larger uploads fail with 413.
	MaxPackageSize int64

	server *httptest.Server
}

// NewRelayServer starts a fake relay. Callers must Close it.
func NewRelayServer() *RelayServer {
	rs := &RelayServer{
		packages: make(map[string][]byte),
		metadata: make(map[string]model.PackageEntry),
		backups:  make(map[uuid.UUID]*model.Backup),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/packages/{digest}", rs.handleUpload)
	mux.HandleFunc("HEAD /v1/packages/{digest}", rs.handleHead)
	mux.HandleFunc("GET /v1/packages/{digest}", rs.handleDownload)
	mux.HandleFunc("POST /v1/backups", rs.handleCreateBackup)
	mux.HandleFunc("GET /v1/backups", rs.handleListBackups)
	mux.HandleFunc("GET /v1/backups/{id}", rs.handleGetBackup)
	mux.HandleFunc("DELETE /v1/backups/{id}", rs.handleDeleteBackup)
	mux.HandleFunc("GET /v1/transfers", rs.handleListTransfers)
	mux.HandleFunc("POST /v1/transfers/{digest}/ack", rs.handleAck)

	rs.server = httptest.NewServer(mux)
	return rs
}

// URL returns the base URL of the fake relay.
func (rs *RelayServer) URL() string { return rs.server.URL }

// Close shuts the fake relay down.
func (rs *RelayServer) Close() { rs.server.Close() }

// SeedPackage stores package bytes directly, bypassing upload.
func (rs *RelayServer) SeedPackage(digest string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.packages[digest] = data
}

// HasPackage reports whether the relay holds bytes for digest.
func (rs *RelayServer) HasPackage(digest string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	_, ok := rs.packages[digest]
	return ok
}

// Digests returns the digests of all stored packages.
func (rs *RelayServer) Digests() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]string, 0, len(rs.packages))
	for d := range rs.packages {
		out = append(out, d)
	}
	return out
}

// UploadCount returns the number of stored packages.
func (rs *RelayServer) UploadCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.packages)
}

func (rs *RelayServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("package")
	if err != nil {
		http.Error(w, "missing package part", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.MaxPackageSize > 0 && int64(len(data)) > rs.MaxPackageSize {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
		return
	}

	var meta model.PackageEntry
	if metaField := r.FormValue("metadata"); metaField != "" {
		_ = json.Unmarshal([]byte(metaField), &meta)
	}
	rs.packages[digest] = data
	rs.metadata[digest] = meta

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"forbidden_recipients": rs.ForbiddenRecipients,
	})
}

func (rs *RelayServer) handleHead(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	_, ok := rs.packages[r.PathValue("digest")]
	rs.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rs *RelayServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	data, ok := rs.packages[r.PathValue("digest")]
	rs.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (rs *RelayServer) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string               `json:"name"`
		IsComplete bool                 `json:"is_complete"`
		Entries    []model.PackageEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	backup := &model.Backup{
		BackupSummary: model.BackupSummary{
			ID:         uuid.New(),
			Name:       req.Name,
			EntryCount: len(req.Entries),
			IsComplete: req.IsComplete,
			CreatedAt:  time.Now().UTC(),
		},
		Entries: req.Entries,
	}

	rs.mu.Lock()
	rs.backups[backup.ID] = backup
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(backup.BackupSummary)
}

func (rs *RelayServer) handleListBackups(w http.ResponseWriter, _ *http.Request) {
	rs.mu.Lock()
	out := make([]model.BackupSummary, 0, len(rs.backups))
	for _, b := range rs.backups {
		out = append(out, b.BackupSummary)
	}
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (rs *RelayServer) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	rs.mu.Lock()
	backup, ok := rs.backups[id]
	rs.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(backup)
}

func (rs *RelayServer) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	rs.mu.Lock()
	_, ok := rs.backups[id]
	delete(rs.backups, id)
	rs.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rs *RelayServer) handleListTransfers(w http.ResponseWriter, _ *http.Request) {
	rs.mu.Lock()
	out := append([]model.TransferNotification(nil), rs.Transfers...)
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (rs *RelayServer) handleAck(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.Acked = append(rs.Acked, r.PathValue("digest"))
	rs.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}
