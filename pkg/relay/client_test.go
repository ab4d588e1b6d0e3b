package relay_test

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/glorpus-work/modshare/pkg/relay"
	"github.com/glorpus-work/modshare/test/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, rs *testutil.RelayServer) *relay.HTTPClient {
	t.Helper()
	client, err := relay.NewHTTPClient(rs.URL(), "acct-test", relay.Options{
		Timeout:          10 * time.Second,
		ProgressInterval: time.Nanosecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	_, err := relay.NewHTTPClient("not a url", "acct", relay.Options{})
	assert.Error(t, err)

	_, err = relay.NewHTTPClient("ftp://relay", "acct", relay.Options{})
	assert.Error(t, err)
}

func TestUpload_Roundtrip(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	client := newClient(t, rs)

	src := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(src, []byte("package-bytes"), 0o644))

	var lastTransferred int64
	forbidden, err := client.Upload(context.Background(), relay.UploadRequest{
		Digest:     "digest-1",
		SourcePath: src,
		Recipients: []string{"friend-a", "friend-b"},
		Metadata:   model.PackageEntry{Digest: "digest-1", DisplayName: "Example"},
		Progress: func(transferred, _ int64) {
			lastTransferred = transferred
		},
	})
	require.NoError(t, err)
	assert.Empty(t, forbidden)
	assert.True(t, rs.HasPackage("digest-1"))
	assert.Equal(t, int64(len("package-bytes")), lastTransferred)
}

func TestUpload_StreamsBodyToTheWire(t *testing.T) {
	payload := make([]byte, 32<<20)
	_, _ = rand.New(rand.NewSource(42)).Read(payload)
	src := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	headRead := make(chan struct{})
	proceed := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(-1), r.ContentLength, "upload body must be streamed, not assembled up front")
		head := make([]byte, 64<<10)
		_, err := io.ReadFull(r.Body, head)
		assert.NoError(t, err)
		close(headRead)
		<-proceed
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client, err := relay.NewHTTPClient(server.URL, "acct-test", relay.Options{ProgressInterval: time.Nanosecond})
	require.NoError(t, err)

	var mu sync.Mutex
	var transferred int64
	done := make(chan error, 1)
	go func() {
		_, uploadErr := client.Upload(context.Background(), relay.UploadRequest{
			Digest:     "digest-stream",
			SourcePath: src,
			Progress: func(tr, _ int64) {
				mu.Lock()
				transferred = tr
				mu.Unlock()
			},
		})
		done <- uploadErr
	}()

	// The relay has only consumed the head of the body; a client that fully
	// reads the package before sending would already report completion here.
	<-headRead
	mu.Lock()
	partial := transferred
	mu.Unlock()
	assert.Less(t, partial, int64(len(payload)),
		"progress must not complete before the relay has consumed the package")

	close(proceed)
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, int64(len(payload)), transferred)
	mu.Unlock()
}

func TestUpload_TooLarge(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.MaxPackageSize = 4
	client := newClient(t, rs)

	src := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(src, []byte("way too large"), 0o644))

	_, err := client.Upload(context.Background(), relay.UploadRequest{
		Digest:     "digest-big",
		SourcePath: src,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTooLarge)
}

func TestUpload_ForbiddenRecipients(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.ForbiddenRecipients = []string{"blocked-account"}
	client := newClient(t, rs)

	src := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(src, []byte("bytes"), 0o644))

	forbidden, err := client.Upload(context.Background(), relay.UploadRequest{
		Digest:     "digest-2",
		SourcePath: src,
		Recipients: []string{"blocked-account"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"blocked-account"}, forbidden)
}

func TestUpload_MissingSource(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	client := newClient(t, rs)

	_, err := client.Upload(context.Background(), relay.UploadRequest{
		Digest:     "digest-3",
		SourcePath: filepath.Join(t.TempDir(), "missing.zip"),
	})
	assert.ErrorIs(t, err, errors.ErrLocallyMissing)
}

func TestExists(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.SeedPackage("present", []byte("x"))
	client := newClient(t, rs)

	ok, err := client.Exists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDownload(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.SeedPackage("digest-dl", []byte("downloaded content"))
	client := newClient(t, rs)

	dest := filepath.Join(t.TempDir(), "out", "pkg.zip")
	var final int64
	err := client.Download(context.Background(), "digest-dl", dest, func(transferred, _ int64) {
		final = transferred
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "downloaded content", string(data))
	assert.Equal(t, int64(len("downloaded content")), final)
}

func TestDownload_NotFound(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	client := newClient(t, rs)

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	err := client.Download(context.Background(), "absent", dest, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_CancelledLeavesNoPartialFile(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.SeedPackage("digest-cancel", []byte("content"))
	client := newClient(t, rs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "pkg.zip")
	err := client.Download(ctx, "digest-cancel", dest, nil)
	require.Error(t, err)

	entries, readErr := os.ReadDir(destDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "cancelled download must not leave files behind")
}

func TestBackupCRUD(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	client := newClient(t, rs)
	ctx := context.Background()

	entries := []model.PackageEntry{
		{Digest: "d1", InstallFolderName: "ModOne", DisplayName: "Mod One"},
		{Digest: "d2", InstallFolderName: "ModTwo", DisplayName: "Mod Two"},
	}

	summary, err := client.CreateBackup(ctx, "my-set", entries, true)
	require.NoError(t, err)
	assert.Equal(t, "my-set", summary.Name)
	assert.Equal(t, 2, summary.EntryCount)
	assert.True(t, summary.IsComplete)

	list, err := client.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	backup, err := client.GetBackup(ctx, summary.ID)
	require.NoError(t, err)
	require.NotNil(t, backup)
	assert.Equal(t, entries, backup.Entries)

	// Unknown id is not an error.
	missing, err := client.GetBackup(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, client.DeleteBackup(ctx, summary.ID))
	// Idempotent.
	require.NoError(t, client.DeleteBackup(ctx, summary.ID))

	list, err = client.ListBackups(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransfers(t *testing.T) {
	rs := testutil.NewRelayServer()
	defer rs.Close()
	rs.Transfers = []model.TransferNotification{
		{Digest: "t1", SenderID: "acct-sender", SenderDisplayHint: "Sender", InstallFolderName: "CoolMod"},
	}
	client := newClient(t, rs)
	ctx := context.Background()

	transfers, err := client.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "t1", transfers[0].Digest)

	require.NoError(t, client.AckTransfer(ctx, "t1", "acct-sender"))
	assert.Equal(t, []string{"t1"}, rs.Acked)
}
