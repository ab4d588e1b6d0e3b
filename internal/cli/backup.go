package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/modshare/pkg/backup"
	"github.com/glorpus-work/modshare/pkg/resolve"
	"github.com/glorpus-work/modshare/pkg/upload"
)

// NewBackupCmd creates the backup command with subcommands.
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage mod backups",
		Long:  "Create, inspect, delete and restore named backups stored on the relay",
	}

	cmd.AddCommand(
		newBackupCreateCmd(),
		newBackupListCmd(),
		newBackupGetCmd(),
		newBackupDeleteCmd(),
		newBackupRestoreCmd(),
	)

	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME PATH...",
		Short: "Upload mod folders and store them as a named backup",
		Long: "Package and upload each mod folder to your own account, then record " +
			"the surviving entries as a named backup on the relay",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupCreate(cmd, args[0], args[1:])
		},
	}
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups",
		RunE:  runBackupList,
	}
}

func newBackupGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a backup's entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupGet(cmd, args[0])
		},
	}
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupDelete(cmd, args[0])
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Restore a backup",
		Long:  "Download and install every entry of the backup in stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(cmd, args[0])
		},
	}
}

func runBackupCreate(cmd *cobra.Command, name string, paths []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	client, err := env.requireRelay()
	if err != nil {
		return err
	}
	if env.cfg.Relay.AccountID == "" {
		return fmt.Errorf("backup create uploads to your own account; set relay.account_id first")
	}

	sources := make([]upload.Source, 0, len(paths))
	for _, path := range paths {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return absErr
		}
		sources = append(sources, upload.Source{InstallFolderName: filepath.Base(abs), Path: abs})
	}

	coordinator := upload.New(client, env.cache, env.archiver, env.bus, env.cfg.Transfer.MaxUploadSize)
	stop := printProgress(env.bus)
	result, err := coordinator.UploadBatch(cmd.Context(), sources, []string{env.cfg.Relay.AccountID}, upload.Options{
		KeepCacheEntries: true,
	})
	stop()
	if err != nil {
		if result != nil {
			printUploadSummary(result)
		}
		return err
	}
	if len(result.Entries) == 0 {
		return fmt.Errorf("no packages survived the upload; nothing to back up")
	}

	mgr := newBackupManager(env)
	summary, err := mgr.Create(cmd.Context(), name, result.Entries)
	if err != nil {
		return err
	}

	fmt.Printf("Backup %q created: %s (%d entries, complete: %t)\n",
		summary.Name, summary.ID, summary.EntryCount, summary.IsComplete)
	return nil
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if _, err := env.requireRelay(); err != nil {
		return err
	}

	summaries, err := newBackupManager(env).List(cmd.Context())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No backups found")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tENTRIES\tCOMPLETE\tCREATED")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n",
			s.ID, truncate(s.Name, MaxNameLength), s.EntryCount, s.IsComplete,
			s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runBackupGet(cmd *cobra.Command, rawID string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if _, err := env.requireRelay(); err != nil {
		return err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid backup id %q: %w", rawID, err)
	}

	b, err := newBackupManager(env).Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if b == nil {
		fmt.Printf("No backup with id %s\n", id)
		return nil
	}

	fmt.Printf("%s (%s, complete: %t)\n", b.Name, b.ID, b.IsComplete)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DIGEST\tNAME\tVERSION\tFOLDER")
	for _, entry := range b.Entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			entry.Digest[:12], truncate(entry.DisplayName, MaxNameLength), entry.Version, entry.InstallFolderName)
	}
	return tw.Flush()
}

func runBackupDelete(cmd *cobra.Command, rawID string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if _, err := env.requireRelay(); err != nil {
		return err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid backup id %q: %w", rawID, err)
	}
	if err := newBackupManager(env).Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Backup %s deleted\n", id)
	return nil
}

func runBackupRestore(cmd *cobra.Command, rawID string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if _, err := env.requireRelay(); err != nil {
		return err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid backup id %q: %w", rawID, err)
	}

	stop := printProgress(env.bus)
	err = newBackupManager(env).Restore(cmd.Context(), id)
	stop()
	if err != nil {
		return err
	}
	fmt.Println("Restore complete")
	return nil
}

func newBackupManager(env *appEnv) *backup.Manager {
	return backup.New(env.client, env.cache, env.capability,
		resolve.New(env.cfg.Resolver), env.hooks, env.bus)
}
