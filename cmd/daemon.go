package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/reminder"
)

var (
	daemonSessionID   int
	daemonProject     string
	daemonTitle       string
	daemonRemindIn    string
	daemonRemindEvery string
	daemonAutoStop    string
	daemonMessage     string
	daemonPoll        string
	daemonQuiet       bool
)

// daemonCmd is the detached worker entry point. It is hidden: only the
// spawner builds its argv.
var daemonCmd = &cobra.Command{
	Use:    reminder.WorkerCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemonRun(cmd.Context())
	},
}

func init() {
	daemonCmd.Flags().IntVar(&daemonSessionID, "session-id", 0, "")
	daemonCmd.Flags().StringVar(&daemonProject, "project", "", "")
	daemonCmd.Flags().StringVar(&daemonTitle, "notify-title", "", "")
	daemonCmd.Flags().StringVar(&daemonRemindIn, "remind-in", "", "")
	daemonCmd.Flags().StringVar(&daemonRemindEvery, "remind-every", "", "")
	daemonCmd.Flags().StringVar(&daemonAutoStop, "for", "", "")
	daemonCmd.Flags().StringVar(&daemonMessage, "remind-message", "", "")
	daemonCmd.Flags().StringVar(&daemonPoll, "remind-poll", "", "")
	daemonCmd.Flags().BoolVar(&daemonQuiet, "quiet", false, "")
	rootCmd.AddCommand(daemonCmd)
}

func daemonRun(ctx context.Context) error {
	log := daemonLogger()

	var sessionID *int
	if daemonSessionID != 0 {
		sessionID = &daemonSessionID
	}

	plan, err := reminder.PlanFromStrings(sessionID, daemonProject, daemonTitle,
		daemonRemindIn, daemonRemindEvery, daemonAutoStop, daemonMessage, daemonPoll)
	if err != nil {
		// The spawner validates before launching; reaching this means a
		// hand-built argv. Nothing to supervise.
		log.Error("invalid worker arguments", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := getRegistry()
	client := getClient()
	pid := os.Getpid()

	engine := reminder.NewDaemon(plan, getOracle(), notify.NewDesktop(), client,
		reg, pid, log, reminder.WithHistory(historyOrNil()))

	err = engine.Run(ctx)
	if err != nil {
		// Killed mid-schedule: leave the entry for the health checker.
		log.Info("worker interrupted", "error", err)
		return nil
	}

	// Clean completion: this worker's entry has nothing left to say.
	if _, rerr := reg.RemoveByPID(ctx, pid); rerr != nil {
		log.Warn("could not deregister", "pid", pid, "error", rerr)
	}
	return nil
}

// daemonLogger builds the worker's slog logger: text to stderr, or
// discarded entirely under --quiet.
func daemonLogger() *slog.Logger {
	if daemonQuiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
