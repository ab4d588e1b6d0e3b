package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the package cache",
		Long:  "Clean and show information about the content-addressed package cache",
	}

	cmd.AddCommand(
		newCacheCleanCmd(),
		newCacheInfoCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean the package cache",
		Long:  "Remove cached package files to free up disk space",
		RunE:  runCacheClean,
	}
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		RunE:  runCacheInfo,
	}
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show the cache directory path",
		RunE:  runCacheDir,
	}
}

func runCacheClean(*cobra.Command, []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	freed, err := env.cache.Clean()
	if err != nil {
		return err
	}
	fmt.Printf("Freed %d bytes\n", freed)
	return nil
}

func runCacheInfo(*cobra.Command, []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	info, err := env.cache.GetInfo()
	if err != nil {
		return err
	}
	fmt.Printf("Cache directory: %s\n", info.Directory)
	fmt.Printf("Packages: %d files, %d bytes\n", info.Files, info.TotalSize)
	return nil
}

func runCacheDir(*cobra.Command, []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	fmt.Println(env.cache.GetDirectory())
	return nil
}
