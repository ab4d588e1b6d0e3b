package relay

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/fsutil"
	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/google/uuid"
)

const defaultUserAgent = "modshare/1.0"

// HTTPClient talks to the relay server over HTTP.
type HTTPClient struct {
	client           *http.Client
	baseURL          *url.URL
	accountID        string
	userAgent        string
	progressInterval time.Duration
}

// Options configure the HTTP client.
type Options struct {
	Timeout   time.Duration
	UserAgent string

	// ProgressInterval is the minimum time between progress callbacks.
	ProgressInterval time.Duration
}

// NewHTTPClient creates a relay client for the given base URL and account.
func NewHTTPClient(baseURL, accountID string, opts Options) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Wrapf(errors.ErrValidation, "invalid relay URL %q", baseURL)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &HTTPClient{
		client:           &http.Client{Timeout: opts.Timeout},
		baseURL:          u,
		accountID:        accountID,
		userAgent:        ua,
		progressInterval: interval,
	}, nil
}

func (hc *HTTPClient) endpoint(parts ...string) string {
	return hc.baseURL.JoinPath(parts...).String()
}

func (hc *HTTPClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", hc.userAgent)
	req.Header.Set("X-Account-ID", hc.accountID)
	return req, nil
}

// classifyStatus maps relay response codes onto the shared error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusForbidden:
		return errors.ErrForbidden
	case code == http.StatusNotFound:
		return errors.ErrNotFound
	case code == http.StatusRequestEntityTooLarge:
		return errors.ErrTooLarge
	default:
		return errors.Wrapf(errors.ErrTransport, "unexpected status code %d", code)
	}
}

// uploadResponse is the relay's per-recipient verdict for a stored package.
type uploadResponse struct {
	ForbiddenRecipients []string `json:"forbidden_recipients,omitempty"`
}

// Upload pushes package bytes plus metadata in one multipart request. The
// body is streamed through a pipe so the package is never held in memory and
// progress tracks bytes handed to the transport, not a local copy.
func (hc *HTTPClient) Upload(ctx context.Context, req UploadRequest) ([]string, error) {
	f, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLocallyMissing, "cannot open %s: %v", req.SourcePath, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLocallyMissing, "cannot stat %s: %v", req.SourcePath, err)
	}

	metaJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode package metadata")
	}

	reader := &progressReader{
		r:        f,
		total:    st.Size(),
		progress: req.Progress,
		interval: hc.progressInterval,
		ctx:      ctx,
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		// An error here surfaces from the transport's body read.
		_ = pw.CloseWithError(writeUploadBody(mw, req, metaJSON, reader))
	}()

	httpReq, err := hc.newRequest(ctx, http.MethodPost, hc.endpoint("v1", "packages", req.Digest), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := hc.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(errors.ErrTransport, "upload of %s: %v", req.Digest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, errors.Wrapf(err, "upload of %s", req.Digest)
	}
	reader.finish()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return nil, errors.Wrapf(errors.ErrTransport, "decoding upload response: %v", err)
	}
	return out.ForbiddenRecipients, nil
}

// writeUploadBody emits the multipart parts of one upload in wire order.
func writeUploadBody(mw *multipart.Writer, req UploadRequest, metaJSON []byte, pkg io.Reader) error {
	if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
		return errors.Wrap(err, "failed to write metadata part")
	}
	for _, r := range req.Recipients {
		if err := mw.WriteField("recipient", r); err != nil {
			return errors.Wrap(err, "failed to write recipient part")
		}
	}
	part, err := mw.CreateFormFile("package", req.Digest+".zip")
	if err != nil {
		return errors.Wrap(err, "failed to create package part")
	}
	if _, err := io.Copy(part, pkg); err != nil {
		return errors.Wrap(err, "failed to read package bytes")
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize multipart body")
	}
	return nil
}

// Exists issues a HEAD for the digest.
func (hc *HTTPClient) Exists(ctx context.Context, digest string) (bool, error) {
	req, err := hc.newRequest(ctx, http.MethodHead, hc.endpoint("v1", "packages", digest), http.NoBody)
	if err != nil {
		return false, err
	}
	resp, err := hc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrapf(errors.ErrTransport, "checking %s: %v", digest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return false, errors.Wrapf(err, "checking %s", digest)
	}
	return true, nil
}

// Download streams package bytes into destPath via a temp file. Cancellation
// is honored at every copy boundary; no partial file survives an error.
func (hc *HTTPClient) Download(ctx context.Context, digest, destPath string, progress ProgressFunc) error {
	req, err := hc.newRequest(ctx, http.MethodGet, hc.endpoint("v1", "packages", digest), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := hc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTransport, "download of %s: %v", digest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return errors.Wrapf(err, "download of %s", digest)
	}

	if err := fsutil.EnsureFileDir(destPath); err != nil {
		return errors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "dl-*.tmp")
	if err != nil {
		return errors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	reader := &progressReader{
		r:        resp.Body,
		total:    resp.ContentLength,
		progress: progress,
		interval: hc.progressInterval,
		ctx:      ctx,
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		discard()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTransport, "download of %s: %v", digest, err)
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return errors.Wrap(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "could not close file")
	}
	if err := fsutil.Move(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "could not finalize file")
	}
	reader.finish()
	return nil
}

// backupCreateRequest is the body of POST /v1/backups.
type backupCreateRequest struct {
	Name       string               `json:"name"`
	IsComplete bool                 `json:"is_complete"`
	Entries    []model.PackageEntry `json:"entries"`
}

// CreateBackup stores a named collection of package entries on the relay.
func (hc *HTTPClient) CreateBackup(ctx context.Context, name string, entries []model.PackageEntry, isComplete bool) (*model.BackupSummary, error) {
	payload, err := json.Marshal(backupCreateRequest{Name: name, IsComplete: isComplete, Entries: entries})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode backup")
	}
	req, err := hc.newRequest(ctx, http.MethodPost, hc.endpoint("v1", "backups"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var summary model.BackupSummary
	if err := hc.doJSON(ctx, req, &summary); err != nil {
		return nil, errors.Wrap(err, "creating backup")
	}
	return &summary, nil
}

// ListBackups returns all backup summaries for the account.
func (hc *HTTPClient) ListBackups(ctx context.Context) ([]model.BackupSummary, error) {
	req, err := hc.newRequest(ctx, http.MethodGet, hc.endpoint("v1", "backups"), http.NoBody)
	if err != nil {
		return nil, err
	}
	var out []model.BackupSummary
	if err := hc.doJSON(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "listing backups")
	}
	return out, nil
}

// GetBackup fetches one backup by id. An unknown id yields (nil, nil).
func (hc *HTTPClient) GetBackup(ctx context.Context, id uuid.UUID) (*model.Backup, error) {
	req, err := hc.newRequest(ctx, http.MethodGet, hc.endpoint("v1", "backups", id.String()), http.NoBody)
	if err != nil {
		return nil, err
	}
	var out model.Backup
	if err := hc.doJSON(ctx, req, &out); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "fetching backup %s", id)
	}
	return &out, nil
}

// DeleteBackup removes a backup; deleting an unknown id is a no-op.
func (hc *HTTPClient) DeleteBackup(ctx context.Context, id uuid.UUID) error {
	req, err := hc.newRequest(ctx, http.MethodDelete, hc.endpoint("v1", "backups", id.String()), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := hc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTransport, "deleting backup %s: %v", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return errors.Wrapf(err, "deleting backup %s", id)
	}
	return nil
}

// ListTransfers returns the pending inbound transfer notifications.
func (hc *HTTPClient) ListTransfers(ctx context.Context) ([]model.TransferNotification, error) {
	req, err := hc.newRequest(ctx, http.MethodGet, hc.endpoint("v1", "transfers"), http.NoBody)
	if err != nil {
		return nil, err
	}
	var out []model.TransferNotification
	if err := hc.doJSON(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "listing transfers")
	}
	return out, nil
}

// AckTransfer acknowledges an inbound transfer back to its sender.
func (hc *HTTPClient) AckTransfer(ctx context.Context, digest, senderID string) error {
	payload := fmt.Sprintf(`{"digest":%q,"sender_id":%q}`, digest, senderID)
	req, err := hc.newRequest(ctx, http.MethodPost, hc.endpoint("v1", "transfers", digest, "ack"), bytes.NewReader([]byte(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTransport, "acking transfer %s: %v", digest, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return errors.Wrapf(err, "acking transfer %s", digest)
	}
	return nil
}

// doJSON executes req and decodes the 2xx response body into out.
func (hc *HTTPClient) doJSON(ctx context.Context, req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := hc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTransport, "%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(errors.ErrTransport, "decoding response: %v", err)
	}
	return nil
}
