package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autumnhq/autumn/internal/durations"
	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/reminder"
	"github.com/autumnhq/autumn/internal/sched"
	"github.com/autumnhq/autumn/internal/store"
)

var (
	remindMessage    string
	remindTitle      string
	remindBackground bool

	attachRemindIn    string
	attachRemindEvery string
	attachAutoStop    string
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Schedule one-off or periodic reminders",
}

var remindInCmd = &cobra.Command{
	Use:   "in <duration>",
	Short: "Remind once after a delay",
	Long: `Remind once after a delay, e.g. 'autumn remind in 25m --message "tea"'.

By default the command waits in the foreground and fires the notification
itself. With --background a detached worker takes over and the command
returns immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindInRun(cmd.Context(), args[0])
	},
}

var remindEveryCmd = &cobra.Command{
	Use:   "every <duration>",
	Short: "Remind repeatedly at an interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindEveryRun(cmd.Context(), args[0])
	},
}

var remindAtCmd = &cobra.Command{
	Use:   "at <HH:MM | RFC3339>",
	Short: "Remind at an absolute time",
	Long: `Remind at a wall-clock time. 'autumn remind at 17:30 --message "standup"'
fires at the next 17:30 (tomorrow if that time already passed today).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindAtRun(cmd.Context(), args[0])
	},
}

var remindAttachCmd = &cobra.Command{
	Use:   "attach <session-id>",
	Short: "Attach reminder/auto-stop supervision to a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		return remindAttachRun(cmd.Context(), id)
	},
}

func init() {
	for _, c := range []*cobra.Command{remindInCmd, remindEveryCmd, remindAtCmd, remindAttachCmd} {
		c.Flags().StringVar(&remindMessage, "message", "", "Reminder message")
		c.Flags().StringVar(&remindTitle, "title", "", "Notification title")
	}
	remindInCmd.Flags().BoolVar(&remindBackground, "background", false, "Spawn a detached worker instead of waiting")

	remindAttachCmd.Flags().StringVar(&attachRemindIn, "remind-in", "", "Remind once after this long")
	remindAttachCmd.Flags().StringVar(&attachRemindEvery, "remind-every", "", "Remind repeatedly at this interval")
	remindAttachCmd.Flags().StringVar(&attachAutoStop, "for", "", "Auto-stop the session after this long")

	remindCmd.AddCommand(remindInCmd)
	remindCmd.AddCommand(remindEveryCmd)
	remindCmd.AddCommand(remindAtCmd)
	remindCmd.AddCommand(remindAttachCmd)
	rootCmd.AddCommand(remindCmd)
}

func notifyTitle() string {
	if remindTitle != "" {
		return remindTitle
	}
	return viper.GetString("notify.title")
}

func remindInRun(ctx context.Context, duration string) error {
	secs, err := durations.Parse(duration)
	if err != nil {
		return err
	}

	if remindBackground {
		return spawnStandalone(ctx, reminder.Request{RemindIn: duration})
	}
	return waitAndFire(ctx, time.Duration(secs)*time.Second)
}

// waitAndFire is the foreground one-shot path: an in-process scheduled
// task with a spinner on the wait. Ctrl-C cancels without firing.
func waitAndFire(ctx context.Context, delay time.Duration) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	msg := remindMessage
	if msg == "" {
		msg = "Reminder"
	}
	title := notifyTitle()

	fired := make(chan error, 1)
	task := sched.Once(delay, func() {
		fired <- notify.NewDesktop().Notify(title, msg)
	}, "remind-in")

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Writer = os.Stderr
	sp.Suffix = fmt.Sprintf(" reminding in %s", durations.Format(int(delay.Seconds())))
	sp.Start()

	select {
	case <-ctx.Done():
		task.Cancel()
		sp.Stop()
		ui.Info("Reminder cancelled")
		return nil
	case err := <-fired:
		sp.Stop()
		recordManual(ctx, title, msg, err == nil)
		if err != nil {
			ui.Warning("Notification failed: %v", err)
			ui.Info("%s", msg)
			return nil
		}
		ui.Success("%s", msg)
		return nil
	}
}

func remindEveryRun(ctx context.Context, duration string) error {
	if _, err := durations.Parse(duration); err != nil {
		return err
	}
	return spawnStandalone(ctx, reminder.Request{RemindEvery: duration})
}

func remindAtRun(ctx context.Context, at string) error {
	delay, err := delayUntil(at, time.Now())
	if err != nil {
		return err
	}
	secs := int(delay.Seconds())
	if secs < 1 {
		secs = 1
	}
	return spawnStandalone(ctx, reminder.Request{
		RemindIn: durations.Format(secs),
	})
}

// delayUntil converts an absolute time spec to a delay from now. HH:MM
// rolls to the next day when already past.
func delayUntil(at string, now time.Time) (time.Duration, error) {
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		d := t.Sub(now)
		if d <= 0 {
			return 0, fmt.Errorf("time %s is in the past", at)
		}
		return d, nil
	}

	clock, err := time.Parse("15:04", at)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: use HH:MM or RFC3339", at)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(),
		clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now), nil
}

func remindAttachRun(ctx context.Context, sessionID int) error {
	if attachRemindIn == "" && attachRemindEvery == "" && attachAutoStop == "" {
		return fmt.Errorf("nothing to schedule: set --remind-in, --remind-every, or --for")
	}

	// Find the session so the reminder carries its project name.
	sessions, err := getClient().ActiveSessions(ctx)
	if err != nil {
		return err
	}
	project := ""
	for _, s := range sessions {
		if s.ID == sessionID {
			project = s.Project
			break
		}
	}
	if project == "" {
		return fmt.Errorf("session %d is not active", sessionID)
	}

	entry, err := reminder.NewSpawner(getRegistry()).Spawn(ctx, reminder.Request{
		SessionID:   &sessionID,
		Project:     project,
		NotifyTitle: notifyTitle(),
		RemindIn:    attachRemindIn,
		RemindEvery: attachRemindEvery,
		AutoStopFor: attachAutoStop,
		Message:     remindMessage,
		Poll:        viper.GetString("remind.poll"),
	})
	if err != nil {
		return err
	}
	ui.Success("Attached to session %d (pid %d, %s)", sessionID, entry.PID, entry.Mode)
	return nil
}

// spawnStandalone launches a worker for a reminder not tied to a session.
func spawnStandalone(ctx context.Context, req reminder.Request) error {
	req.Project = "reminder"
	req.NotifyTitle = notifyTitle()
	req.Message = remindMessage
	if req.Message == "" {
		req.Message = "Reminder"
	}
	req.Poll = viper.GetString("remind.poll")

	entry, err := reminder.NewSpawner(getRegistry()).Spawn(ctx, req)
	if err != nil {
		return err
	}
	if entry.NextFireAt != nil {
		ui.Success("Reminder scheduled for %s (pid %d)", entry.NextFireAt.Local().Format("15:04"), entry.PID)
	} else {
		ui.Success("Reminder scheduled (pid %d)", entry.PID)
	}
	return nil
}

// recordManual appends a manually fired reminder to the history store.
func recordManual(ctx context.Context, title, msg string, delivered bool) {
	h := historyOrNil()
	if h == nil {
		return
	}
	err := h.RecordNotification(ctx, &store.Notification{
		Kind:      store.KindRemind,
		Project:   "reminder",
		Title:     title,
		Message:   msg,
		Delivered: delivered,
	})
	if err != nil {
		ui.VerboseLog("history record failed: %v", err)
	}
}
