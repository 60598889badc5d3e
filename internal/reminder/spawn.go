package reminder

import (
	"context"
	"strconv"
	"time"

	"github.com/autumnhq/autumn/internal/durations"
	"github.com/autumnhq/autumn/internal/proc"
	"github.com/autumnhq/autumn/internal/registry"
)

// WorkerCommand is the hidden subcommand the spawner launches; it runs the
// daemon state machine to completion.
const WorkerCommand = "reminder-daemon"

// Request describes a background reminder to spawn. Durations are kept as
// the user's original strings: they are re-parsed by the worker and stored
// in the registry for fallback recomputation.
type Request struct {
	SessionID   *int
	Project     string
	NotifyTitle string
	RemindIn    string
	RemindEvery string
	AutoStopFor string
	Message     string
	Poll        string
}

// workerArgs builds the worker process argv for this request.
func (r Request) workerArgs() []string {
	args := []string{
		WorkerCommand,
		"--project", r.Project,
		"--notify-title", r.NotifyTitle,
		"--remind-message", r.Message,
		"--remind-poll", r.Poll,
		"--quiet",
	}
	if r.SessionID != nil {
		args = append(args, "--session-id", strconv.Itoa(*r.SessionID))
	}
	if r.RemindIn != "" {
		args = append(args, "--remind-in", r.RemindIn)
	}
	if r.RemindEvery != "" {
		args = append(args, "--remind-every", r.RemindEvery)
	}
	if r.AutoStopFor != "" {
		args = append(args, "--for", r.AutoStopFor)
	}
	return args
}

// Spawner creates detached reminder workers and records them in the
// registry.
type Spawner struct {
	Registry *registry.Registry

	// SpawnFn launches the worker; replaceable in tests.
	SpawnFn func(args ...string) (int, error)
	// Now is the clock used for the initial next-fire estimate.
	Now func() time.Time
}

// NewSpawner returns a Spawner using the real process spawner.
func NewSpawner(reg *registry.Registry) *Spawner {
	return &Spawner{
		Registry: reg,
		SpawnFn:  proc.SpawnDetached,
		Now:      time.Now,
	}
}

// Spawn validates the request, launches a detached worker, and registers
// it. A spawn failure aborts the whole scheduling request; no registry
// entry is written.
func (s *Spawner) Spawn(ctx context.Context, req Request) (registry.Entry, error) {
	if req.NotifyTitle == "" {
		req.NotifyTitle = DefaultTitle
	}
	if req.Message == "" {
		req.Message = DefaultMessage
	}
	if req.Poll == "" {
		req.Poll = "30s"
	}

	// Reject configuration errors before any process is created.
	if _, err := PlanFromStrings(req.SessionID, req.Project, req.NotifyTitle,
		req.RemindIn, req.RemindEvery, req.AutoStopFor, req.Message, req.Poll); err != nil {
		return registry.Entry{}, err
	}

	pid, err := s.SpawnFn(req.workerArgs()...)
	if err != nil {
		return registry.Entry{}, err
	}

	entry := registry.Entry{
		PID:           pid,
		SessionID:     req.SessionID,
		Project:       req.Project,
		CreatedAt:     s.Now().UTC(),
		Mode:          registry.ModeFor(req.RemindIn, req.RemindEvery, req.AutoStopFor),
		Status:        registry.StatusPending,
		RemindIn:      req.RemindIn,
		RemindEvery:   req.RemindEvery,
		AutoStopFor:   req.AutoStopFor,
		RemindPoll:    req.Poll,
		RemindMessage: req.Message,
		NotifyTitle:   req.NotifyTitle,
		NextFireAt:    s.initialNextFire(req),
	}

	return s.Registry.Add(ctx, entry)
}

// initialNextFire estimates the worker's first wake time from the reminder
// durations. Best-effort: the worker rewrites it as it advances.
func (s *Spawner) initialNextFire(req Request) *time.Time {
	raw := req.RemindIn
	if raw == "" {
		raw = req.RemindEvery
	}
	if raw == "" {
		return nil
	}
	secs, err := durations.Parse(raw)
	if err != nil {
		return nil
	}
	t := s.Now().UTC().Add(time.Duration(secs) * time.Second)
	return &t
}
