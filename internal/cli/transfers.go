package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/modshare/pkg/queue"
	"github.com/glorpus-work/modshare/pkg/resolve"
)

// NewTransfersCmd creates the transfers command with subcommands.
func NewTransfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Manage incoming transfers",
		Long:  "List, install and discard mod packages other accounts sent you",
	}

	cmd.AddCommand(
		newTransfersListCmd(),
		newTransfersInstallCmd(),
		newTransfersDiscardCmd(),
	)

	return cmd
}

func newTransfersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending transfers",
		RunE:  runTransfersList,
	}
}

func newTransfersInstallCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "install [DIGEST...]",
		Short: "Install pending transfers",
		Long:  "Download and install the selected transfers one at a time, in arrival order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfersInstall(cmd, args, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "install every pending transfer")

	return cmd
}

func newTransfersDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard DIGEST...",
		Short: "Discard pending transfers",
		Long:  "Remove transfers from the pending set and acknowledge them to their senders",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTransfersDiscard,
	}
}

// newInstallQueue wires an install queue and fills it from the relay.
func newInstallQueue(cmd *cobra.Command, env *appEnv) (*queue.Queue, error) {
	if _, err := env.requireRelay(); err != nil {
		return nil, err
	}
	q := queue.New(env.client, env.cache, env.capability,
		resolve.New(env.cfg.Resolver), env.hooks, env.bus)
	if _, err := q.Sync(cmd.Context()); err != nil {
		return nil, err
	}
	return q, nil
}

func runTransfersList(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	q, err := newInstallQueue(cmd, env)
	if err != nil {
		return err
	}
	q.RefreshStatus(cmd.Context())

	items := q.Items()
	if len(items) == 0 {
		fmt.Println("No pending transfers")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DIGEST\tNAME\tFROM\tSTATE\tINSTALLED")
	for _, item := range items {
		name := item.Notification.FolderName()
		if info := item.Notification.PackageInfo; info != nil && info.DisplayName != "" {
			name = info.DisplayName
		}
		sender := item.Notification.SenderDisplayHint
		if sender == "" {
			sender = item.Notification.SenderID
		}
		installed := "-"
		if item.Status != nil && item.Status.Installed {
			installed = item.Status.InstalledVersion
			if installed == "" {
				installed = "yes"
			}
			if item.Status.UpdateAvailable {
				installed += " (update available)"
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			item.Notification.Digest[:12], truncate(name, MaxNameLength), sender, item.State, installed)
	}
	return tw.Flush()
}

func runTransfersInstall(cmd *cobra.Command, digests []string, all bool) error {
	if len(digests) == 0 && !all {
		return fmt.Errorf("specify transfer digests or --all")
	}

	env, err := buildEnv()
	if err != nil {
		return err
	}
	q, err := newInstallQueue(cmd, env)
	if err != nil {
		return err
	}

	if all {
		q.SelectAll()
	} else {
		for _, digest := range resolveDigests(q, digests) {
			if err := q.Select(digest, true); err != nil {
				return err
			}
		}
	}

	stop := printProgress(env.bus)
	err = q.StartBatch(cmd.Context())
	stop()
	if err != nil {
		return err
	}

	for _, item := range q.Items() {
		if item.State == queue.StateFailed {
			fmt.Printf("Failed: %s (%s)\n", item.Notification.Digest[:12], item.FailureMsg)
		}
	}
	return nil
}

func runTransfersDiscard(cmd *cobra.Command, digests []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	q, err := newInstallQueue(cmd, env)
	if err != nil {
		return err
	}
	if err := q.Discard(cmd.Context(), resolveDigests(q, digests)...); err != nil {
		return err
	}
	fmt.Printf("Discarded %d transfer(s)\n", len(digests))
	return nil
}

// resolveDigests expands unambiguous digest prefixes to the full digests held
// by the queue.
func resolveDigests(q *queue.Queue, prefixes []string) []string {
	items := q.Items()
	resolved := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		full := prefix
		matches := 0
		for _, item := range items {
			if len(prefix) <= len(item.Notification.Digest) && item.Notification.Digest[:len(prefix)] == prefix {
				full = item.Notification.Digest
				matches++
			}
		}
		if matches != 1 {
			full = prefix
		}
		resolved = append(resolved, full)
	}
	return resolved
}
