package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/output"
	"github.com/autumnhq/autumn/internal/reminder"
)

var (
	startRemindIn     string
	startRemindEvery  string
	startAutoStopFor  string
	startMessage      string
	startNote         string
	startNoBackground bool
)

var startCmd = &cobra.Command{
	Use:   "start <project>",
	Short: "Start a work session, optionally with reminders or auto-stop",
	Long: `Start a timer for a project via the session service.

With --remind-in, --remind-every, or --for, the new session is supervised:
a detached worker nags you (or stops the timer) on schedule. Use
--no-background to keep the supervision in this process instead; it then
ends when you interrupt the command or the session stops.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return startRun(cmd.Context(), args[0])
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running work session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetInt("session-id")
		return stopRun(cmd.Context(), sessionID)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active sessions and reminder workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	startCmd.Flags().StringVar(&startRemindIn, "remind-in", "", "Remind once after this long (e.g. 25m)")
	startCmd.Flags().StringVar(&startRemindEvery, "remind-every", "", "Remind repeatedly at this interval (e.g. 1h)")
	startCmd.Flags().StringVar(&startAutoStopFor, "for", "", "Auto-stop the session after this long (e.g. 2h)")
	startCmd.Flags().StringVar(&startMessage, "message", "", "Reminder message ({project} and {elapsed} expand)")
	startCmd.Flags().StringVar(&startNote, "note", "", "Note to attach to the session")
	startCmd.Flags().BoolVar(&startNoBackground, "no-background", false, "Supervise in this process instead of a detached worker")

	stopCmd.Flags().Int("session-id", 0, "Session to stop (default: the single active one)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func startRun(ctx context.Context, project string) error {
	client := getClient()

	sess, err := client.StartSession(ctx, project, startNote)
	if err != nil {
		return err
	}
	ui.Success("Started session %d for %s", sess.ID, output.Cyan(sess.Project))

	if startRemindIn == "" && startRemindEvery == "" && startAutoStopFor == "" {
		return nil
	}

	req := reminder.Request{
		SessionID:   &sess.ID,
		Project:     sess.Project,
		NotifyTitle: viper.GetString("notify.title"),
		RemindIn:    startRemindIn,
		RemindEvery: startRemindEvery,
		AutoStopFor: startAutoStopFor,
		Message:     startMessage,
		Poll:        viper.GetString("remind.poll"),
	}

	if startNoBackground {
		return superviseForeground(ctx, req)
	}

	entry, err := reminder.NewSpawner(getRegistry()).Spawn(ctx, req)
	if err != nil {
		return fmt.Errorf("schedule supervision: %w", err)
	}
	ui.Info("Supervising in background (pid %d, %s)", entry.PID, entry.Mode)
	return nil
}

// superviseForeground runs the shared reminder engine in this process.
// Ctrl-C cancels it; the session's own end does too.
func superviseForeground(ctx context.Context, req reminder.Request) error {
	plan, err := reminder.PlanFromStrings(req.SessionID, req.Project, req.NotifyTitle,
		req.RemindIn, req.RemindEvery, req.AutoStopFor, req.Message, req.Poll)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := getClient()
	engine := reminder.NewForeground(plan, getOracle(), notify.NewDesktop(), client,
		reminder.WithHistory(historyOrNil()))

	ui.Info("Supervising in foreground; Ctrl-C to stop watching")
	if err := engine.Run(ctx); err != nil {
		if ctx.Err() != nil {
			ui.Info("Stopped watching (the session keeps running)")
			return nil
		}
		return err
	}
	return nil
}

func stopRun(ctx context.Context, sessionID int) error {
	client := getClient()

	if sessionID == 0 {
		sessions, err := client.ActiveSessions(ctx)
		if err != nil {
			return err
		}
		switch len(sessions) {
		case 0:
			return fmt.Errorf("no active session to stop")
		case 1:
			sessionID = sessions[0].ID
		default:
			return fmt.Errorf("%d sessions active: pick one with --session-id", len(sessions))
		}
	}

	if err := client.StopSession(ctx, sessionID); err != nil {
		return err
	}
	ui.Success("Stopped session %d", sessionID)
	ui.VerboseLog("workers watching this session will notice and exit on their next poll")
	return nil
}

func statusRun(ctx context.Context) error {
	client := getClient()
	oracle := getOracle()

	sessions, err := client.ActiveSessions(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		ui.Info("No active session")
	} else {
		table := ui.Table([]string{"Session", "Project", "Elapsed"})
		for _, s := range sessions {
			table.Append([]string{
				strconv.Itoa(s.ID),
				output.Cyan(s.Project),
				oracle.Elapsed(ctx, &s.ID),
			})
		}
		table.Render()
	}

	entries, err := getRegistry().Load(ctx, true)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Fprintln(ui.Out)
		ui.Info("%d reminder worker(s) registered; see 'autumn reminders list'", len(entries))
	}
	return nil
}
