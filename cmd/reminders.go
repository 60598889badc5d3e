package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autumnhq/autumn/internal/health"
	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/output"
	"github.com/autumnhq/autumn/internal/proc"
	"github.com/autumnhq/autumn/internal/registry"
	"github.com/autumnhq/autumn/internal/reminder"
)

var (
	listOutput string

	stopPID       int
	stopID        string
	stopSessionID int
	stopAll       bool

	historyLimit int
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Inspect and manage reminder workers",
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered reminder workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindersListRun(cmd.Context())
	},
}

var remindersStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop reminder workers and remove their registry entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindersStopRun(cmd.Context())
	},
}

var remindersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile the registry against real process and session state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindersCheckRun(cmd.Context())
	},
}

var remindersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the reminder registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindersWatchRun(cmd.Context())
	},
}

var remindersHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindersHistoryRun(cmd.Context())
	},
}

func init() {
	remindersListCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table, json, or yaml")

	remindersStopCmd.Flags().IntVar(&stopPID, "pid", 0, "Stop the worker with this pid")
	remindersStopCmd.Flags().StringVar(&stopID, "id", "", "Stop the worker with this registry id")
	remindersStopCmd.Flags().IntVar(&stopSessionID, "session-id", 0, "Stop all workers watching this session")
	remindersStopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every registered worker")

	remindersHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show")

	remindersCmd.AddCommand(remindersListCmd)
	remindersCmd.AddCommand(remindersStopCmd)
	remindersCmd.AddCommand(remindersCheckCmd)
	remindersCmd.AddCommand(remindersWatchCmd)
	remindersCmd.AddCommand(remindersHistoryCmd)
	rootCmd.AddCommand(remindersCmd)
}

func remindersListRun(ctx context.Context) error {
	entries, err := getRegistry().Load(ctx, true)
	if err != nil {
		return err
	}

	switch listOutput {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		fmt.Fprint(ui.Out, string(data))
		return nil
	case "table":
		renderEntries(entries)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", listOutput)
	}
}

func renderEntries(entries []registry.Entry) {
	if len(entries) == 0 {
		ui.Info("No reminder workers registered")
		return
	}

	table := ui.Table([]string{"PID", "Project", "Session", "Mode", "Status", "Next fire", "Process"})
	for _, e := range entries {
		session := "-"
		if e.SessionID != nil {
			session = strconv.Itoa(*e.SessionID)
		}
		nextFire := "-"
		if e.NextFireAt != nil {
			nextFire = e.NextFireAt.Local().Format("15:04:05")
		}
		table.Append([]string{
			strconv.Itoa(e.PID),
			output.Cyan(e.Project),
			session,
			e.Mode,
			output.StatusColor(string(e.Status)),
			nextFire,
			output.LivenessColor(proc.Check(e.PID)),
		})
	}
	table.Render()
}

func remindersStopRun(ctx context.Context) error {
	if !stopAll && stopPID == 0 && stopID == "" && stopSessionID == 0 {
		return fmt.Errorf("pick targets with --pid, --id, --session-id, or --all")
	}

	reg := getRegistry()
	entries, err := reg.Load(ctx, false)
	if err != nil {
		return err
	}

	stopped := 0
	for _, e := range entries {
		if !stopTargets(e) {
			continue
		}

		// Kill failures are reported but never leave the entry behind:
		// a process that cannot be signalled is not worth tracking.
		if !proc.Kill(e.PID) {
			ui.Warning("Could not signal pid %d; removing its entry anyway", e.PID)
		}
		if _, err := reg.RemoveByPID(ctx, e.PID); err != nil {
			return err
		}
		ui.Success("Stopped reminder for %s (pid %d)", e.Project, e.PID)
		stopped++
	}

	if stopped == 0 {
		ui.Info("No matching reminder workers")
	}
	return nil
}

func stopTargets(e registry.Entry) bool {
	if stopAll {
		return true
	}
	if stopPID != 0 && e.PID == stopPID {
		return true
	}
	if stopID != "" && e.ID == stopID {
		return true
	}
	if stopSessionID != 0 && e.SessionID != nil && *e.SessionID == stopSessionID {
		return true
	}
	return false
}

func remindersCheckRun(ctx context.Context) error {
	reg := getRegistry()
	checker := health.NewChecker(reg, getOracle(), reminder.NewSpawner(reg), notify.NewDesktop())
	checker.History = historyOrNil()

	report, err := checker.Run(ctx)
	if err != nil {
		return err
	}

	ui.Info("Checked %d reminder worker(s)", report.Checked)
	for _, m := range report.Missed {
		ui.Warning("Missed: %s was due %s (pid %d died)",
			m.Entry.Project, m.ExpectedAt.Local().Format("15:04"), m.Entry.PID)
	}
	for _, e := range report.Respawned {
		ui.Success("Respawned %s reminder for %s (pid %d)", e.Mode, e.Project, e.PID)
	}
	for _, e := range report.Removed {
		ui.VerboseLog("removed dead entry pid %d (%s)", e.PID, e.Project)
	}
	if len(report.Missed) == 0 && len(report.Respawned) == 0 && len(report.Removed) == 0 {
		ui.Success("All reminder workers healthy")
	}
	return nil
}

// remindersWatchRun re-renders the registry whenever its file changes.
// The registry is rewritten whole on every mutation, so watching the
// parent directory catches create/rename as well as plain writes. A
// periodic tick re-renders regardless, to pick up liveness changes that
// touch no file.
func remindersWatchRun(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := getRegistry()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	// Make sure the directory exists before watching it.
	if _, err := reg.Load(ctx, false); err != nil {
		return err
	}
	if err := watcher.Add(registryDir()); err != nil {
		return fmt.Errorf("watch %s: %w", registryDir(), err)
	}

	render := func() {
		entries, err := reg.Load(ctx, true)
		if err != nil {
			ui.Error("load registry: %v", err)
			return
		}
		fmt.Fprintf(ui.Out, "\n%s\n", time.Now().Format("15:04:05"))
		renderEntries(entries)
	}

	render()
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name == reg.Path() && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				render()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ui.Warning("watch error: %v", err)
		case <-tick.C:
			render()
		}
	}
}

func remindersHistoryRun(ctx context.Context) error {
	h, err := getHistory()
	if err != nil {
		return err
	}

	notifications, err := h.ListNotifications(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		ui.Info("No notifications recorded yet")
		return nil
	}

	table := ui.Table([]string{"Fired", "Kind", "Project", "Message", "Delivered"})
	for _, n := range notifications {
		delivered := output.Green("yes")
		if !n.Delivered {
			delivered = output.Red("no")
		}
		table.Append([]string{
			n.FiredAt.Local().Format("Jan 02 15:04"),
			string(n.Kind),
			output.Cyan(n.Project),
			n.Message,
			delivered,
		})
	}
	table.Render()
	return nil
}
