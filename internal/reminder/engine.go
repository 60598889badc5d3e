package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/registry"
	"github.com/autumnhq/autumn/internal/store"
)

// Stopper is the slice of the session service the engine needs for
// auto-stop.
type Stopper interface {
	StopSession(ctx context.Context, sessionID int) error
}

// Oracle answers session liveness and elapsed-time questions.
type Oracle interface {
	Active(ctx context.Context, sessionID *int) bool
	Elapsed(ctx context.Context, sessionID *int) string
}

// PersistFunc records schedule progress (next wake time and status).
// The detached worker persists into the registry; the foreground executor
// persists nothing.
type PersistFunc func(ctx context.Context, next *time.Time, status *registry.Status)

// Engine executes one Plan to completion: it wakes at computed times,
// fires reminders or the auto-stop, and returns when the schedule is
// exhausted or the supervised session ends.
//
// The same engine backs both executors. Only the persistence hook and the
// surrounding process model differ: in-process callers cancel via ctx,
// detached workers are killed.
type Engine struct {
	plan     Plan
	oracle   Oracle
	notifier notify.Notifier
	stopper  Stopper
	clock    Clock
	log      *slog.Logger

	persist PersistFunc
	history store.Store // optional, best-effort
}

// NewEngine builds an engine for the given plan. stopper may be nil when
// the plan has no auto-stop. persist may be nil.
func NewEngine(plan Plan, oracle Oracle, notifier notify.Notifier, stopper Stopper, opts ...EngineOption) *Engine {
	e := &Engine{
		plan:     plan,
		oracle:   oracle,
		notifier: notifier,
		stopper:  stopper,
		clock:    NewClock(),
		log:      slog.Default(),
		persist:  func(context.Context, *time.Time, *registry.Status) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock injects a clock (tests).
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger injects a logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithPersist injects the schedule progress hook.
func WithPersist(p PersistFunc) EngineOption {
	return func(e *Engine) { e.persist = p }
}

// WithHistory records fired notifications in the given store.
func WithHistory(s store.Store) EngineOption {
	return func(e *Engine) { e.history = s }
}

// Run executes the plan. It returns nil when the schedule completed or
// the session ended, and ctx.Err() when cancelled.
func (e *Engine) Run(ctx context.Context) error {
	p := e.plan
	start := e.clock.Now()

	var nextRemind, nextEvery, stopAt *time.Time
	if p.RemindIn != nil {
		t := start.Add(time.Duration(*p.RemindIn) * time.Second)
		nextRemind = &t
	}
	if p.RemindEvery != nil {
		t := start.Add(time.Duration(*p.RemindEvery) * time.Second)
		nextEvery = &t
	}
	if p.AutoStopAfter != nil {
		t := start.Add(time.Duration(*p.AutoStopAfter) * time.Second)
		stopAt = &t
	}

	completed := registry.StatusCompleted
	firing := registry.StatusFiring

	e.log.Info("reminder engine started",
		"project", p.Project, "mode", e.mode(), "poll_seconds", p.PollSeconds)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Liveness first: a dead session ends everything.
		if !e.oracle.Active(ctx, p.SessionID) {
			e.log.Info("session no longer active; exiting")
			e.persist(ctx, nil, &completed)
			return nil
		}

		now := e.clock.Now()

		// Auto-stop takes precedence over reminders.
		if stopAt != nil && !now.Before(*stopAt) {
			if err := e.stopper.StopSession(ctx, *p.SessionID); err != nil {
				e.log.Warn("auto-stop request failed", "error", err)
			}
			e.send(ctx, store.KindAutoStop, "Auto-stopped timer: "+p.Project)
			e.persist(ctx, nil, &completed)
			return nil
		}

		if nextRemind != nil && !now.Before(*nextRemind) {
			e.fireReminder(ctx)
			nextRemind = nil
			if nextEvery == nil && stopAt == nil {
				e.persist(ctx, nil, &completed)
				return nil
			}
			e.persist(ctx, earliest(nextEvery, stopAt), &firing)
		}

		if nextEvery != nil && !now.Before(*nextEvery) {
			e.fireReminder(ctx)
			// Advance from the previous target, not from now, to avoid
			// drift; catch up past any intervals missed while asleep.
			interval := time.Duration(*p.RemindEvery) * time.Second
			next := nextEvery.Add(interval)
			for !next.After(now) {
				next = next.Add(interval)
			}
			nextEvery = &next
			e.persist(ctx, earliest(nextRemind, nextEvery, stopAt), &firing)
		}

		now = e.clock.Now()
		d := time.Duration(p.PollSeconds) * time.Second
		if next := earliest(nextRemind, nextEvery, stopAt); next != nil {
			d = next.Sub(now)
		}
		d = clampSleep(d, p.PollSeconds)

		if err := e.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}
}

// fireReminder formats and sends the reminder message.
func (e *Engine) fireReminder(ctx context.Context) {
	elapsed := e.oracle.Elapsed(ctx, e.plan.SessionID)
	msg := FormatMessage(e.plan.Message, e.plan.Project, elapsed)
	e.send(ctx, store.KindRemind, msg)
}

// send delivers a notification and records it in the history store.
// Failures never crash the supervision loop.
func (e *Engine) send(ctx context.Context, kind store.Kind, msg string) {
	err := e.notifier.Notify(e.plan.NotifyTitle, msg)
	if err != nil {
		e.log.Warn("notification failed", "error", err)
	}

	if e.history != nil {
		rerr := e.history.RecordNotification(ctx, &store.Notification{
			Kind:      kind,
			Project:   e.plan.Project,
			SessionID: e.plan.SessionID,
			Title:     e.plan.NotifyTitle,
			Message:   msg,
			Delivered: err == nil,
		})
		if rerr != nil {
			e.log.Warn("history record failed", "error", rerr)
		}
	}
}

func (e *Engine) mode() string {
	in, every, stop := "", "", ""
	if e.plan.RemindIn != nil {
		in = "x"
	}
	if e.plan.RemindEvery != nil {
		every = "x"
	}
	if e.plan.AutoStopAfter != nil {
		stop = "x"
	}
	return registry.ModeFor(in, every, stop)
}

// earliest returns the soonest of the given times, ignoring nils.
func earliest(times ...*time.Time) *time.Time {
	var min *time.Time
	for _, t := range times {
		if t == nil {
			continue
		}
		if min == nil || t.Before(*min) {
			min = t
		}
	}
	return min
}

// clampSleep bounds a sleep to [1s, poll] so liveness is re-checked at
// least once per poll interval.
func clampSleep(d time.Duration, pollSeconds int) time.Duration {
	poll := time.Duration(pollSeconds) * time.Second
	if d > poll {
		return poll
	}
	if d < time.Second {
		return time.Second
	}
	return d
}
