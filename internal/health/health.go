// Package health reconciles the reminder registry against real process
// and session state. It finds workers that died with work still pending,
// reports reminders they missed, respawns periodic schedules that should
// still be running, and clears the dead entries out.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autumnhq/autumn/internal/durations"
	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/proc"
	"github.com/autumnhq/autumn/internal/registry"
	"github.com/autumnhq/autumn/internal/reminder"
	"github.com/autumnhq/autumn/internal/store"
)

// SessionOracle answers whether an entry's session is still live.
type SessionOracle interface {
	Active(ctx context.Context, sessionID *int) bool
}

// Respawner re-creates a background worker for a schedule that should
// still be running.
type Respawner interface {
	Spawn(ctx context.Context, req reminder.Request) (registry.Entry, error)
}

// Miss is a reminder that a dead worker should have fired but didn't.
type Miss struct {
	Entry      registry.Entry
	ExpectedAt time.Time
}

// Report summarizes one reconciliation pass.
type Report struct {
	Checked   int
	Missed    []Miss
	Respawned []registry.Entry
	Removed   []registry.Entry
}

// Checker runs the reconciliation pass.
type Checker struct {
	Registry *registry.Registry
	Oracle   SessionOracle
	Spawner  Respawner
	Notifier notify.Notifier
	History  store.Store // optional

	// CheckLiveness probes a pid; replaceable in tests.
	CheckLiveness func(pid int) proc.Liveness
	Now           func() time.Time
	Log           *slog.Logger
}

// NewChecker wires a Checker with real process primitives.
func NewChecker(reg *registry.Registry, oracle SessionOracle, spawner Respawner, notifier notify.Notifier) *Checker {
	return &Checker{
		Registry:      reg,
		Oracle:        oracle,
		Spawner:       spawner,
		Notifier:      notifier,
		CheckLiveness: proc.Check,
		Now:           time.Now,
		Log:           slog.Default(),
	}
}

// Run reconciles every registry entry. Entries are loaded without pruning
// so dead-but-unprocessed work stays visible. Entries whose process is
// alive (or whose liveness is uncertain) are left untouched; every
// confirmed-dead entry is removed, after its pending work is reported
// and, for periodic schedules with a live session, respawned.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	entries, err := c.Registry.Load(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	report := &Report{Checked: len(entries)}

	for _, e := range entries {
		if e.PID != proc.SentinelPID && c.CheckLiveness(e.PID) != proc.Dead {
			continue
		}

		if e.Status != registry.StatusCompleted && e.PID != proc.SentinelPID {
			c.reconcileDead(ctx, e, report)
		}

		// A dead process is never left in the registry as pending.
		if _, err := c.Registry.RemoveByPID(ctx, e.PID); err != nil {
			c.Log.Warn("failed to remove dead entry", "pid", e.PID, "error", err)
			continue
		}
		report.Removed = append(report.Removed, e)
	}

	return report, nil
}

// reconcileDead handles one dead-but-incomplete entry: report a missed
// fire, respawn a periodic schedule that should still run.
func (c *Checker) reconcileDead(ctx context.Context, e registry.Entry, report *Report) {
	now := c.Now()
	active := c.Oracle.Active(ctx, e.SessionID)

	if expected := expectedFire(e); expected != nil && expected.Before(now) && active {
		report.Missed = append(report.Missed, Miss{Entry: e, ExpectedAt: *expected})
		c.reportMiss(ctx, e, *expected)
	}

	if e.RemindEvery != "" && active {
		respawned, err := c.respawn(ctx, e, now)
		if err != nil {
			c.Log.Warn("respawn failed", "pid", e.PID, "project", e.Project, "error", err)
			return
		}
		report.Respawned = append(report.Respawned, respawned)
	}
}

// expectedFire resolves when the entry should have fired next: the stored
// next-fire time if present, else recomputed from the one-shot duration
// and the creation time.
func expectedFire(e registry.Entry) *time.Time {
	if e.NextFireAt != nil {
		return e.NextFireAt
	}
	if e.RemindIn == "" {
		return nil
	}
	secs, err := durations.Parse(e.RemindIn)
	if err != nil {
		return nil
	}
	t := e.CreatedAt.Add(time.Duration(secs) * time.Second)
	return &t
}

// respawn launches a fresh worker carrying the schedule that remains:
// the periodic interval as-is, and whatever is left of the auto-stop
// window. The one-shot part is not carried; if it was missed it has
// already been reported, and if it is still in the future the periodic
// respawn is what keeps the session supervised.
func (c *Checker) respawn(ctx context.Context, e registry.Entry, now time.Time) (registry.Entry, error) {
	req := reminder.Request{
		SessionID:   e.SessionID,
		Project:     e.Project,
		NotifyTitle: e.NotifyTitle,
		RemindEvery: e.RemindEvery,
		Message:     e.RemindMessage,
		Poll:        e.RemindPoll,
	}

	if e.AutoStopFor != "" {
		if secs, err := durations.Parse(e.AutoStopFor); err == nil {
			remaining := int(e.CreatedAt.Add(time.Duration(secs) * time.Second).Sub(now).Seconds())
			if remaining > 0 {
				req.AutoStopFor = durations.Format(remaining)
			}
		}
	}

	entry, err := c.Spawner.Spawn(ctx, req)
	if err != nil {
		return registry.Entry{}, err
	}

	// Record the future-aligned fire time for the new entry; the worker
	// rewrites it as it advances.
	if secs, perr := durations.Parse(e.RemindEvery); perr == nil {
		interval := time.Duration(secs) * time.Second
		last := e.CreatedAt
		if e.NextFireAt != nil {
			last = *e.NextFireAt
		}
		aligned := NextAligned(last, interval, now)
		if uerr := c.Registry.UpdateNextFire(ctx, entry.PID, &aligned, nil); uerr == nil {
			entry.NextFireAt = &aligned
		}
	}

	return entry, nil
}

// NextAligned advances from the last known fire target by whole intervals
// until the result is strictly after now. A target already in the future
// is returned as-is.
func NextAligned(last time.Time, interval time.Duration, now time.Time) time.Time {
	next := last
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

// reportMiss sends the best-effort miss notification and records it.
func (c *Checker) reportMiss(ctx context.Context, e registry.Entry, expected time.Time) {
	title := e.NotifyTitle
	if title == "" {
		title = reminder.DefaultTitle
	}
	msg := fmt.Sprintf("Missed reminder for %s (was due %s)", e.Project, expected.Local().Format("15:04"))

	err := c.Notifier.Notify(title, msg)
	if err != nil {
		c.Log.Warn("miss notification failed", "pid", e.PID, "error", err)
	}

	if c.History != nil {
		rerr := c.History.RecordNotification(ctx, &store.Notification{
			Kind:      store.KindMissed,
			Project:   e.Project,
			SessionID: e.SessionID,
			Title:     title,
			Message:   msg,
			Delivered: err == nil,
		})
		if rerr != nil {
			c.Log.Warn("history record failed", "error", rerr)
		}
	}
}
