package backup_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/modshare/pkg/backup"
	"github.com/glorpus-work/modshare/pkg/cache"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/events"
	"github.com/glorpus-work/modshare/pkg/hash"
	installermocks "github.com/glorpus-work/modshare/pkg/installer/mocks"
	"github.com/glorpus-work/modshare/pkg/model"
	relaymocks "github.com/glorpus-work/modshare/pkg/relay/mocks"
	"github.com/glorpus-work/modshare/pkg/resolve"
)

// digestOf returns the content digest the cache will verify against.
func digestOf(t *testing.T, content []byte) string {
	t.Helper()
	d, err := hash.Reader(bytes.NewReader(content))
	require.NoError(t, err)
	return d
}

func newManager(t *testing.T, client *relaymocks.MockClient, capability *installermocks.MockCapability) (*backup.Manager, *cache.Manager) {
	t.Helper()
	cacheMgr := cache.NewManager(filepath.Join(t.TempDir(), "packages"))
	return backup.New(client, cacheMgr, capability, resolve.NewDefault(), nil, events.NewBroadcaster()), cacheMgr
}

func TestCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entries := []model.PackageEntry{
		{Digest: "d1", DisplayName: "One"},
		{Digest: "d2", DisplayName: "Two"},
	}

	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().Exists(gomock.Any(), "d1").Return(true, nil)
	client.EXPECT().Exists(gomock.Any(), "d2").Return(true, nil)
	client.EXPECT().CreateBackup(gomock.Any(), "my mods", entries, true).
		Return(&model.BackupSummary{ID: uuid.New(), Name: "my mods", EntryCount: 2, IsComplete: true}, nil)

	mgr, _ := newManager(t, client, installermocks.NewMockCapability(ctrl))
	summary, err := mgr.Create(context.Background(), "my mods", entries)
	require.NoError(t, err)
	assert.True(t, summary.IsComplete)
}

func TestCreate_IncompleteWhenDigestMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entries := []model.PackageEntry{{Digest: "d1"}, {Digest: "d2"}}

	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().Exists(gomock.Any(), "d1").Return(true, nil)
	client.EXPECT().Exists(gomock.Any(), "d2").Return(false, nil)
	client.EXPECT().CreateBackup(gomock.Any(), "partial", entries, false).
		Return(&model.BackupSummary{Name: "partial", EntryCount: 2}, nil)

	mgr, _ := newManager(t, client, installermocks.NewMockCapability(ctrl))
	_, err := mgr.Create(context.Background(), "partial", entries)
	require.NoError(t, err)
}

func TestCreate_ExistsProbeFailureIsUnconfirmed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entries := []model.PackageEntry{{Digest: "d1"}}

	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().Exists(gomock.Any(), "d1").
		Return(false, errors.Wrap(errors.ErrTransport, "relay flaked"))
	client.EXPECT().CreateBackup(gomock.Any(), "flaky", entries, false).
		Return(&model.BackupSummary{Name: "flaky"}, nil)

	mgr, _ := newManager(t, client, installermocks.NewMockCapability(ctrl))
	_, err := mgr.Create(context.Background(), "flaky", entries)
	require.NoError(t, err, "a failed existence probe must not fail the create")
}

func TestCreate_Validates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mgr, _ := newManager(t, relaymocks.NewMockClient(ctrl), installermocks.NewMockCapability(ctrl))

	_, err := mgr.Create(context.Background(), "", []model.PackageEntry{{Digest: "d"}})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = mgr.Create(context.Background(), "empty", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRestore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contentA := []byte("package a bytes")
	contentB := []byte("package b bytes")
	digestA := digestOf(t, contentA)
	digestB := digestOf(t, contentB)

	id := uuid.New()
	b := &model.Backup{
		BackupSummary: model.BackupSummary{ID: id, Name: "set", EntryCount: 2},
		Entries: []model.PackageEntry{
			{Digest: digestA, DisplayName: "Alpha Mod"},
			{Digest: digestB, DisplayName: "Beta Mod"},
		},
	}

	installRoot := t.TempDir()
	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().GetBackup(gomock.Any(), id).Return(b, nil)
	client.EXPECT().Download(gomock.Any(), digestA, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, dest string, _ func(int64, int64)) error {
			return os.WriteFile(dest, contentA, 0o644)
		})
	client.EXPECT().Download(gomock.Any(), digestB, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, dest string, _ func(int64, int64)) error {
			return os.WriteFile(dest, contentB, 0o644)
		})

	capability := installermocks.NewMockCapability(ctrl)
	capability.EXPECT().ListMods(gomock.Any()).Return(nil, nil)
	capability.EXPECT().GetInstallRoot(gomock.Any()).Return(installRoot, nil)
	installedInto := []string{}
	capability.EXPECT().Install(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, folderName, packagePath string, _ func(float64)) error {
			installedInto = append(installedInto, folderName)
			assert.FileExists(t, packagePath)
			return nil
		})

	mgr, cacheMgr := newManager(t, client, capability)
	require.NoError(t, mgr.Restore(context.Background(), id))

	// Nothing installed matches the hints, so names fall back to hash-suffixed.
	assert.Equal(t, []string{
		"Alpha Mod-" + digestA[:8],
		"Beta Mod-" + digestB[:8],
	}, installedInto)

	// Downloads were promoted into the cache.
	assert.NotNil(t, cacheMgr.Lookup(digestA))
	assert.NotNil(t, cacheMgr.Lookup(digestB))
}

func TestRestore_FailsFastAndNamesEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contentA := []byte("restorable")
	digestA := digestOf(t, contentA)

	id := uuid.New()
	b := &model.Backup{
		BackupSummary: model.BackupSummary{ID: id, Name: "set", EntryCount: 3},
		Entries: []model.PackageEntry{
			{Digest: digestA, DisplayName: "First"},
			{Digest: "gone-digest", DisplayName: "Second"},
			{Digest: "never-tried", DisplayName: "Third"},
		},
	}

	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().GetBackup(gomock.Any(), id).Return(b, nil)
	client.EXPECT().Download(gomock.Any(), digestA, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, dest string, _ func(int64, int64)) error {
			return os.WriteFile(dest, contentA, 0o644)
		})
	client.EXPECT().Download(gomock.Any(), "gone-digest", gomock.Any(), gomock.Any()).
		Return(errors.Wrap(errors.ErrNotFound, "no such package"))
	// Third entry is never downloaded.

	capability := installermocks.NewMockCapability(ctrl)
	capability.EXPECT().ListMods(gomock.Any()).Return(nil, nil)
	capability.EXPECT().GetInstallRoot(gomock.Any()).Return(t.TempDir(), nil)
	capability.EXPECT().Install(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(nil)

	mgr, _ := newManager(t, client, capability)
	err := mgr.Restore(context.Background(), id)

	var entryErr *backup.RestoreEntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, 2, entryErr.Position)
	assert.Equal(t, "Second", entryErr.Name)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRestore_SkipsCachedDigest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	content := []byte("already here")
	digest := digestOf(t, content)

	id := uuid.New()
	b := &model.Backup{
		BackupSummary: model.BackupSummary{ID: id, Name: "cached", EntryCount: 1},
		Entries:       []model.PackageEntry{{Digest: digest, DisplayName: "Cached Mod"}},
	}

	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().GetBackup(gomock.Any(), id).Return(b, nil)
	// No Download call expected.

	capability := installermocks.NewMockCapability(ctrl)
	capability.EXPECT().ListMods(gomock.Any()).Return(nil, nil)
	capability.EXPECT().GetInstallRoot(gomock.Any()).Return(t.TempDir(), nil)
	capability.EXPECT().Install(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	mgr, cacheMgr := newManager(t, client, capability)

	src := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(src, content, 0o644))
	_, err := cacheMgr.Store(digest, src)
	require.NoError(t, err)

	require.NoError(t, mgr.Restore(context.Background(), id))
}

func TestRestore_UnknownBackup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	id := uuid.New()
	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().GetBackup(gomock.Any(), id).Return(nil, nil)

	mgr, _ := newManager(t, client, installermocks.NewMockCapability(ctrl))
	err := mgr.Restore(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDelete_UnknownIDIsNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	id := uuid.New()
	client := relaymocks.NewMockClient(ctrl)
	client.EXPECT().DeleteBackup(gomock.Any(), id).Return(nil)

	mgr, _ := newManager(t, client, installermocks.NewMockCapability(ctrl))
	assert.NoError(t, mgr.Delete(context.Background(), id))
}
