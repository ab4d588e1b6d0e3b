//go:build integration

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/modshare/pkg/model"
	"github.com/glorpus-work/modshare/test/testutil"
)

// testEnv holds the per-test config file and directories.
type testEnv struct {
	configPath string
	cacheDir   string
	installDir string
	relay      *testutil.RelayServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tempDir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(tempDir, "config.yaml"),
		cacheDir:   filepath.Join(tempDir, "cache"),
		installDir: filepath.Join(tempDir, "mods"),
		relay:      testutil.NewRelayServer(),
	}
	t.Cleanup(env.relay.Close)

	yamlContent := `relay:
  url: ` + env.relay.URL() + `
  account_id: me
settings:
  cache_dir: ` + env.cacheDir + `
  install_dir: ` + env.installDir + `
  http_timeout: 5s
`
	require.NoError(t, os.WriteFile(env.configPath, []byte(yamlContent), 0o600))
	return env
}

// run executes the root command with args and returns captured stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	execErr := cmd.ExecuteContext(context.Background())

	_ = w.Close()
	os.Stdout = oldStdout
	var buf strings.Builder
	_, _ = io.Copy(&buf, r)
	return buf.String(), execErr
}

func writeModDir(t *testing.T, parent, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	for file, content := range files {
		path := filepath.Join(dir, file)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestUploadAndTransferRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	modDir := writeModDir(t, t.TempDir(), "CoolMod", map[string]string{
		"mod.dll":    "cool mod bytes",
		"readme.txt": "hello",
	})

	output, err := env.run(t, "upload", modDir, "--to", "friend")
	require.NoError(t, err)
	assert.Contains(t, output, "Uploaded 1 package(s)")
	require.Equal(t, 1, env.relay.UploadCount())

	digest := env.relay.Digests()[0]
	env.relay.Transfers = []model.TransferNotification{{
		Digest:            digest,
		SenderID:          "friend",
		SenderDisplayHint: "A Friend",
		InstallFolderName: "CoolMod",
	}}

	output, err = env.run(t, "transfers", "list")
	require.NoError(t, err)
	assert.Contains(t, output, digest[:12])
	assert.Contains(t, output, "A Friend")

	_, err = env.run(t, "transfers", "install", "--all")
	require.NoError(t, err)

	dirEntries, err := os.ReadDir(env.installDir)
	require.NoError(t, err)
	installed := []string{}
	for _, de := range dirEntries {
		if de.IsDir() {
			installed = append(installed, de.Name())
		}
	}
	require.Len(t, installed, 1)
	assert.True(t, strings.HasPrefix(installed[0], "CoolMod"))
	assert.FileExists(t, filepath.Join(env.installDir, installed[0], "mod.dll"))
	assert.Contains(t, env.relay.Acked, digest)
}

func TestTransfersDiscard(t *testing.T) {
	env := newTestEnv(t)
	env.relay.Transfers = []model.TransferNotification{{
		Digest:   "0123456789abcdef0123456789abcdef01234567",
		SenderID: "friend",
	}}

	output, err := env.run(t, "transfers", "discard", "0123456789ab")
	require.NoError(t, err)
	assert.Contains(t, output, "Discarded 1 transfer(s)")
	assert.Contains(t, env.relay.Acked, "0123456789abcdef0123456789abcdef01234567")
}

func TestBackupCreateListRestore(t *testing.T) {
	env := newTestEnv(t)
	modDir := writeModDir(t, t.TempDir(), "BackedUp", map[string]string{
		"mod.dll": "backed up bytes",
	})

	output, err := env.run(t, "backup", "create", "my mods", modDir)
	require.NoError(t, err)
	assert.Contains(t, output, `Backup "my mods" created`)
	assert.Contains(t, output, "complete: true")

	output, err = env.run(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "my mods")

	// Extract the id from the list output.
	var id string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "my mods") {
			id = strings.Fields(line)[0]
		}
	}
	require.NotEmpty(t, id)

	output, err = env.run(t, "backup", "get", id)
	require.NoError(t, err)
	assert.Contains(t, output, "BackedUp")

	_, err = env.run(t, "backup", "restore", id)
	require.NoError(t, err)

	dirEntries, err := os.ReadDir(env.installDir)
	require.NoError(t, err)
	require.NotEmpty(t, dirEntries)

	output, err = env.run(t, "backup", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, output, "deleted")

	output, err = env.run(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "No backups found")
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t)

	output, err := env.run(t, "cache", "dir")
	require.NoError(t, err)
	assert.Contains(t, output, env.cacheDir)

	output, err = env.run(t, "cache", "info")
	require.NoError(t, err)
	assert.Contains(t, output, "Packages:")

	output, err = env.run(t, "cache", "clean")
	require.NoError(t, err)
	assert.Contains(t, output, "Freed")
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	output, err := env.run(t, "config", "get", "relay.account_id")
	require.NoError(t, err)
	assert.Contains(t, output, "me")

	_, err = env.run(t, "config", "set", "settings.log_level", "debug")
	require.NoError(t, err)

	output, err = env.run(t, "config", "get", "settings.log_level")
	require.NoError(t, err)
	assert.Contains(t, output, "debug")

	output, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "relay.url")

	_, err = env.run(t, "config", "get", "not.a.key")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	output, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "modshare version")
}
