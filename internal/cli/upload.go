package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/modshare/pkg/upload"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	var (
		recipients []string
		keepCache  bool
	)

	cmd := &cobra.Command{
		Use:   "upload PATH...",
		Short: "Package and upload mod folders",
		Long: "Package each mod folder deterministically, deduplicate by content " +
			"digest and upload once per unique package to all recipients",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args, recipients, keepCache)
		},
	}

	cmd.Flags().StringArrayVar(&recipients, "to", nil, "recipient account id (repeatable)")
	cmd.Flags().BoolVar(&keepCache, "keep-cache", false, "keep packaged files in the cache after upload")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runUpload(cmd *cobra.Command, paths, recipients []string, keepCache bool) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	client, err := env.requireRelay()
	if err != nil {
		return err
	}

	sources := make([]upload.Source, 0, len(paths))
	for _, path := range paths {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return absErr
		}
		sources = append(sources, upload.Source{
			InstallFolderName: filepath.Base(abs),
			Path:              abs,
		})
	}

	coordinator := upload.New(client, env.cache, env.archiver, env.bus, env.cfg.Transfer.MaxUploadSize)
	stop := printProgress(env.bus)
	result, err := coordinator.UploadBatch(cmd.Context(), sources, recipients, upload.Options{
		KeepCacheEntries: keepCache,
	})
	stop()
	if result != nil {
		printUploadSummary(result)
	}
	return err
}

func printUploadSummary(result *upload.Result) {
	fmt.Printf("Uploaded %d package(s), %d bytes\n", len(result.Entries), result.UploadedBytes)
	for _, entry := range result.Entries {
		fmt.Printf("  %s  %s\n", entry.Digest[:12], entry.DisplayName)
	}
	printDigestSet("Skipped (too large)", result.SkippedTooLarge)
	printDigestSet("Missing locally", result.LocallyMissing)
	printDigestSet("Rejected by relay", result.Forbidden)
	printDigestSet("Failed", result.Failed)
}

func printDigestSet(label string, digests map[string]struct{}) {
	if len(digests) == 0 {
		return
	}
	sorted := make([]string, 0, len(digests))
	for d := range digests {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)
	fmt.Printf("%s:\n", label)
	for _, d := range sorted {
		fmt.Printf("  %s\n", d)
	}
}
