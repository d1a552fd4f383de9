// Package main is the entry point for the gh-notifier batch CLI: a
// one-shot command for inspecting and managing notification history
// without going through the Control API.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/models"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "gh-notifier",
		Short: "A GitHub notification client with history and management features",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")

	root.AddCommand(
		newStartCmd(),
		newHistoryCmd(&configPath),
		newMarkReadCmd(&configPath),
		newDeleteCmd(&configPath),
		newFilterCmd(&configPath),
		newInfoCmd(&configPath),
		newTuiCmd(&configPath),
	)

	return root
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the notification polling service",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, "Use gh-notifierd to start the polling service.")
			os.Exit(1)
			return nil
		},
	}
}

// loadConfigAndStore resolves configuration and opens the notification
// store read-write, for subcommands that don't run the sync engine.
func loadConfigAndStore(configPath string) (*config.RuntimeConfig, *store.SQLiteStore, error) {
	if configPath == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, nil, err
		}
		configPath = dir + "/config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DBPath, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}

	return cfg, st, nil
}

type historyFlags struct {
	unread      bool
	read        bool
	repository  string
	reason      string
	subjectType string
	since       string
	until       string
	limit       int
	verbose     bool
}

func newHistoryCmd(configPath *string) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View notification history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(*configPath, f)
		},
	}
	cmd.Flags().BoolVarP(&f.unread, "unread", "u", false, "show only unread notifications")
	cmd.Flags().BoolVar(&f.read, "read", false, "show only read notifications")
	cmd.Flags().StringVarP(&f.repository, "repository", "r", "", "filter by repository substring")
	cmd.Flags().StringVar(&f.reason, "reason", "", "filter by notification reason")
	cmd.Flags().StringVarP(&f.subjectType, "subject-type", "s", "", "filter by subject type")
	cmd.Flags().StringVar(&f.since, "since", "", "filter notifications received since (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "filter notifications received until (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 50, "maximum number of notifications to show")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "show detailed information for each notification")
	return cmd
}

func runHistory(configPath string, f *historyFlags) error {
	_, st, err := loadConfigAndStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var notifications []*models.StoredNotification
	switch {
	case f.unread:
		notifications, err = st.ListUnread()
	default:
		notifications, err = st.ListAll()
	}
	if err != nil {
		return err
	}

	if f.read {
		notifications = filterNotifications(notifications, func(n *models.StoredNotification) bool { return n.IsRead })
	}
	if f.repository != "" {
		notifications = filterNotifications(notifications, func(n *models.StoredNotification) bool {
			return strings.Contains(n.Repository, f.repository)
		})
	}
	if f.reason != "" {
		notifications = filterNotifications(notifications, func(n *models.StoredNotification) bool { return n.Reason == f.reason })
	}
	if f.subjectType != "" {
		notifications = filterNotifications(notifications, func(n *models.StoredNotification) bool { return n.SubjectType == f.subjectType })
	}
	if f.since != "" || f.until != "" {
		notifications = filterNotifications(notifications, func(n *models.StoredNotification) bool {
			return withinDateRange(n.ReceivedAt, f.since, f.until)
		})
	}

	if f.limit > 0 && len(notifications) > f.limit {
		notifications = notifications[:f.limit]
	}

	for _, n := range notifications {
		printNotification(n, f.verbose)
	}
	fmt.Printf("\n%d notification(s)\n", len(notifications))
	return nil
}

func filterNotifications(in []*models.StoredNotification, keep func(*models.StoredNotification) bool) []*models.StoredNotification {
	var out []*models.StoredNotification
	for _, n := range in {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func withinDateRange(receivedAt, since, until string) bool {
	t, err := time.Parse(time.RFC3339, receivedAt)
	if err != nil {
		return false
	}
	if since != "" {
		if sinceT, ok := parseDateOrRFC3339(since); ok && t.Before(sinceT) {
			return false
		}
	}
	if until != "" {
		if untilT, ok := parseDateOrRFC3339(until); ok && t.After(untilT) {
			return false
		}
	}
	return true
}

func parseDateOrRFC3339(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func printNotification(n *models.StoredNotification, verbose bool) {
	mark := " "
	if !n.IsRead {
		mark = "*"
	}
	fmt.Printf("%s [%s] %s - %s\n", mark, n.ID, n.Repository, n.Title)
	if verbose {
		fmt.Printf("    reason: %s  type: %s  received: %s\n", n.Reason, n.SubjectType, n.ReceivedAt)
		fmt.Printf("    %s\n", n.URL)
	}
}

type markReadFlags struct {
	all        bool
	repository string
}

func newMarkReadCmd(configPath *string) *cobra.Command {
	f := &markReadFlags{}
	cmd := &cobra.Command{
		Use:   "mark-read [notification-id...]",
		Short: "Mark notifications as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkRead(*configPath, f, args)
		},
	}
	cmd.Flags().BoolVarP(&f.all, "all", "a", false, "mark all notifications as read")
	cmd.Flags().StringVar(&f.repository, "repository", "", "mark all unread notifications for a repository as read")
	return cmd
}

func runMarkRead(configPath string, f *markReadFlags, ids []string) error {
	_, st, err := loadConfigAndStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case f.all:
		if err := st.MarkAllAsRead(); err != nil {
			return err
		}
		fmt.Println("All notifications marked as read.")
	case f.repository != "":
		all, err := st.ListAll()
		if err != nil {
			return err
		}
		marked := 0
		for _, n := range all {
			if !n.IsRead && strings.Contains(n.Repository, f.repository) {
				if err := st.MarkAsRead(n.ID); err != nil {
					return err
				}
				marked++
			}
		}
		fmt.Printf("Marked %d notifications from %q as read.\n", marked, f.repository)
	case len(ids) > 0:
		for _, id := range ids {
			if err := st.MarkAsRead(id); err != nil {
				return err
			}
		}
		fmt.Printf("Marked %d notifications as read.\n", len(ids))
	default:
		fmt.Fprintln(os.Stderr, "Please specify notification IDs, use --all, or use --repository.")
		os.Exit(1)
	}
	return nil
}

type deleteFlags struct {
	all        bool
	repository string
}

func newDeleteCmd(configPath *string) *cobra.Command {
	f := &deleteFlags{}
	cmd := &cobra.Command{
		Use:   "delete [notification-id...]",
		Short: "Delete notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(*configPath, f, args)
		},
	}
	cmd.Flags().BoolVarP(&f.all, "all", "a", false, "delete all notifications")
	cmd.Flags().StringVar(&f.repository, "repository", "", "delete all notifications for a repository")
	return cmd
}

func runDelete(configPath string, f *deleteFlags, ids []string) error {
	_, st, err := loadConfigAndStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case f.all:
		all, err := st.ListAll()
		if err != nil {
			return err
		}
		for _, n := range all {
			if err := st.Delete(n.ID); err != nil {
				return err
			}
		}
		fmt.Printf("Deleted all %d notifications.\n", len(all))
	case f.repository != "":
		all, err := st.ListAll()
		if err != nil {
			return err
		}
		deleted := 0
		for _, n := range all {
			if strings.Contains(n.Repository, f.repository) {
				if err := st.Delete(n.ID); err != nil {
					return err
				}
				deleted++
			}
		}
		fmt.Printf("Deleted %d notifications from %q.\n", deleted, f.repository)
	case len(ids) > 0:
		for _, id := range ids {
			if err := st.Delete(id); err != nil {
				return err
			}
		}
		fmt.Printf("Deleted %d notifications.\n", len(ids))
	default:
		fmt.Fprintln(os.Stderr, "Please specify notification IDs, use --all, or use --repository.")
		os.Exit(1)
	}
	return nil
}

type filterFlags struct {
	clear bool
	since string
	until string
}

func newFilterCmd(configPath *string) *cobra.Command {
	f := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Clear or inspect notification history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(*configPath, f)
		},
	}
	cmd.Flags().BoolVar(&f.clear, "clear", false, "clear all notifications from history")
	cmd.Flags().StringVar(&f.since, "since", "", "filter notifications since a date (reserved)")
	cmd.Flags().StringVar(&f.until, "until", "", "filter notifications until a date (reserved)")
	return cmd
}

func runFilter(configPath string, f *filterFlags) error {
	_, st, err := loadConfigAndStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case f.clear:
		all, err := st.ListAll()
		if err != nil {
			return err
		}
		for _, n := range all {
			if err := st.Delete(n.ID); err != nil {
				return err
			}
		}
		fmt.Printf("Cleared %d notifications from history.\n", len(all))
	case f.since != "" || f.until != "":
		fmt.Printf("Date range filtering (since: %q, until: %q) is not fully implemented yet.\n", f.since, f.until)
	default:
		fmt.Fprintln(os.Stderr, "Filter command supports --clear to remove all notifications.")
		fmt.Fprintln(os.Stderr, "Other filters like --since and --until are coming soon.")
	}
	return nil
}

func newInfoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show application info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(*configPath)
		},
	}
}

func runInfo(configPath string) error {
	_, st, err := loadConfigAndStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	all, err := st.ListAll()
	if err != nil {
		return err
	}

	var unread, read int
	for _, n := range all {
		if n.IsRead {
			read++
		} else {
			unread++
		}
	}

	fmt.Println("GitHub Notifier - Application Information")
	fmt.Println("========================================")
	fmt.Printf("Total notifications: %d\n", len(all))
	fmt.Printf("Unread notifications: %d\n", unread)
	fmt.Printf("Read notifications: %d\n", read)

	if len(all) > 0 {
		sorted := make([]*models.StoredNotification, len(all))
		copy(sorted, all)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReceivedAt < sorted[j].ReceivedAt })

		oldest := sorted[0]
		newest := sorted[len(sorted)-1]
		fmt.Printf("Oldest notification: %s (%s)\n", oldest.Title, oldest.ReceivedAt)
		fmt.Printf("Newest notification: %s (%s)\n", newest.Title, newest.ReceivedAt)
	}

	return nil
}

func newTuiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive terminal UI (not yet implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, "The interactive terminal UI is not implemented in this build.")
			os.Exit(1)
			return nil
		},
	}
}
