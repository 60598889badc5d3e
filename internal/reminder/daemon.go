package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/autumnhq/autumn/internal/notify"
	"github.com/autumnhq/autumn/internal/registry"
)

// NewDaemon builds the out-of-process executor: an engine that persists
// its schedule progress into the shared registry under the worker's own
// pid. Registry write failures are logged and ignored; a reminder that
// cannot record progress still fires.
func NewDaemon(plan Plan, oracle Oracle, notifier notify.Notifier, stopper Stopper, reg *registry.Registry, pid int, log *slog.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = slog.Default()
	}

	persist := func(ctx context.Context, next *time.Time, status *registry.Status) {
		if err := reg.UpdateNextFire(ctx, pid, next, status); err != nil {
			log.Warn("registry update failed", "pid", pid, "error", err)
		}
	}

	opts = append(opts, WithLogger(log), WithPersist(persist))
	return NewEngine(plan, oracle, notifier, stopper, opts...)
}

// NewForeground builds the in-process executor: the same engine with no
// persistence. It lives and dies with the invoking command; cancellation
// is the caller's ctx.
func NewForeground(plan Plan, oracle Oracle, notifier notify.Notifier, stopper Stopper, opts ...EngineOption) *Engine {
	return NewEngine(plan, oracle, notifier, stopper, opts...)
}
