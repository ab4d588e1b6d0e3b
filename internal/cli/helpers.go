package cli

import (
	"fmt"

	"github.com/glorpus-work/modshare/internal/logger"
	"github.com/glorpus-work/modshare/pkg/archive"
	"github.com/glorpus-work/modshare/pkg/cache"
	"github.com/glorpus-work/modshare/pkg/config"
	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/events"
	"github.com/glorpus-work/modshare/pkg/hook"
	"github.com/glorpus-work/modshare/pkg/installer"
	"github.com/glorpus-work/modshare/pkg/relay"
)

// These variables are set by the main package.
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
)

// loadConfig loads the configuration honoring the global CLI flags.
func loadConfig() (*config.Config, error) {
	path := ""
	if ConfigPath != nil {
		path = *ConfigPath
	}
	if path == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default config path")
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	if OutputFormat != nil && *OutputFormat != "" {
		cfg.Settings.OutputFormat = *OutputFormat
	}
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel)
	return cfg, nil
}

// appEnv bundles the wired components the commands operate on.
type appEnv struct {
	cfg        *config.Config
	client     relay.Client
	cache      *cache.Manager
	archiver   *archive.Manager
	bus        *events.Broadcaster
	hooks      hook.Manager
	capability installer.Capability
}

// buildEnv loads the configuration and wires the full component graph. The
// relay client is only constructed when the config names a relay URL;
// commands that need it get a clear error otherwise.
func buildEnv() (*appEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	cacheDir, err := cfg.GetCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve cache directory")
	}
	installDir, err := cfg.GetInstallDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve install directory")
	}

	archiver := archive.NewManager()
	capability, err := installer.NewLocalCapability(installDir, archiver)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		cfg:        cfg,
		cache:      cache.NewManager(cacheDir),
		archiver:   archiver,
		bus:        events.NewBroadcaster(),
		capability: capability,
	}

	if hookDir, hookErr := cfg.GetHookDir(); hookErr == nil {
		hooks := hook.NewManager()
		if loadErr := hooks.LoadFromDir(hookDir); loadErr != nil {
			logger.Warn("failed to load hook scripts", logger.Fields{"dir": hookDir, "error": loadErr})
		}
		env.hooks = hooks
	}

	if cfg.Relay.URL != "" {
		client, clientErr := relay.NewHTTPClient(cfg.Relay.URL, cfg.Relay.AccountID, relay.Options{
			Timeout:          cfg.Settings.HTTPTimeout,
			ProgressInterval: cfg.Transfer.ProgressInterval,
		})
		if clientErr != nil {
			return nil, clientErr
		}
		env.client = client
	}

	return env, nil
}

// requireRelay returns the relay client or a configuration error.
func (e *appEnv) requireRelay() (relay.Client, error) {
	if e.client == nil {
		return nil, errors.Wrap(errors.ErrConfigValidation,
			"no relay configured; set relay.url with 'modshare config set relay.url URL'")
	}
	return e.client, nil
}

// printProgress subscribes to the event bus and renders progress lines until
// the returned stop function is called.
func printProgress(bus *events.Broadcaster) func() {
	ch := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			switch ev.Phase {
			case events.PhaseUploadProgress, events.PhaseDownloadProgress:
				fmt.Printf("\r%s: %d/%d bytes %s", ev.Phase, ev.Transferred, ev.Total, ev.Msg)
			case events.PhaseRestoreProgress, events.PhaseInstallProgress:
				fmt.Printf("\r%s: %.0f%% %s", ev.Phase, ev.Fraction*100, ev.FolderName)
			case events.PhaseInstalled, events.PhaseUploadDone, events.PhaseDone:
				fmt.Printf("\r%s\n", ev.Phase)
			case events.PhaseInstallFailed, events.PhaseError:
				fmt.Printf("\r%s: %s\n", ev.Phase, ev.Msg)
			}
		}
	}()
	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
