// Package registry persists the record of spawned reminder workers.
//
// The registry is a JSON array rewritten as a whole on every mutation.
// There is no locking: multiple daemons and user commands may race on it,
// and the last write wins. That is an accepted tradeoff; entries are
// best-effort bookkeeping, not a source of truth for process state.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/autumnhq/autumn/internal/proc"
)

// Status tracks how far a worker has advanced through its schedule.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFiring    Status = "firing"
	StatusCompleted Status = "completed"
)

// Entry is one spawned reminder worker.
type Entry struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	SessionID *int      `json:"session_id,omitempty"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
	Mode      string    `json:"mode"`
	Status    Status    `json:"status"`

	// Original duration strings, kept so a dead worker's schedule can be
	// recomputed or respawned.
	RemindIn    string `json:"remind_in,omitempty"`
	RemindEvery string `json:"remind_every,omitempty"`
	AutoStopFor string `json:"auto_stop_for,omitempty"`
	RemindPoll  string `json:"remind_poll,omitempty"`

	NextFireAt *time.Time `json:"next_fire_at,omitempty"`

	RemindMessage string `json:"remind_message,omitempty"`
	NotifyTitle   string `json:"notify_title,omitempty"`
}

// ModeFor derives the mode tag from which schedule pieces are set.
func ModeFor(remindIn, remindEvery, autoStopFor string) string {
	mode := ""
	add := func(part string) {
		if mode == "" {
			mode = part
		} else {
			mode += "+" + part
		}
	}
	if remindIn != "" {
		add("remind-in")
	}
	if remindEvery != "" {
		add("remind-every")
	}
	if autoStopFor != "" {
		add("auto-stop")
	}
	if mode == "" {
		return "unknown"
	}
	return mode
}

// SessionActiveFunc answers whether a session id (nil for standalone) is
// still live. Used only during prune.
type SessionActiveFunc func(ctx context.Context, sessionID *int) bool

// Registry reads and rewrites the reminder registry file.
type Registry struct {
	path string

	// CheckLiveness probes a pid; replaceable in tests.
	CheckLiveness func(pid int) proc.Liveness
	// SessionActive reports session liveness; replaceable in tests.
	// Defaults to treating every session as active, which makes prune
	// keep dead-process entries (the health checker handles those).
	SessionActive SessionActiveFunc
}

// New creates a Registry bound to the given file path.
func New(path string) *Registry {
	return &Registry{
		path:          path,
		CheckLiveness: proc.Check,
		SessionActive: func(context.Context, *int) bool { return true },
	}
}

// Path returns the registry file path.
func (r *Registry) Path() string { return r.path }

// Load reads all entries. Structurally invalid content is repaired to an
// empty registry rather than surfaced as an error. Duplicate
// (pid, session id) pairs are collapsed to the latest creation timestamp.
//
// With pruneDead, entries for the sentinel pid are dropped, and entries
// whose process is confirmed dead AND whose session is no longer active
// are dropped too. An uncertain liveness probe never prunes.
func (r *Registry) Load(ctx context.Context, pruneDead bool) ([]Entry, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Corrupted or non-array root: reset to empty.
		if werr := r.save(nil); werr != nil {
			return nil, fmt.Errorf("repair registry: %w", werr)
		}
		return nil, nil
	}

	deduped := dedupe(entries)
	changed := len(deduped) != len(entries)
	entries = deduped

	if pruneDead {
		kept := entries[:0:len(entries)]
		for _, e := range entries {
			if e.PID == proc.SentinelPID {
				changed = true
				continue
			}
			if r.CheckLiveness(e.PID) == proc.Dead && !r.SessionActive(ctx, e.SessionID) {
				changed = true
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	if changed {
		if err := r.save(entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Add appends a new entry, filling in ID and CreatedAt when unset.
// No pruning happens here: right after a spawn, pid liveness checks can
// race on some platforms.
func (r *Registry) Add(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = newULID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}

	entries, err := r.Load(ctx, false)
	if err != nil {
		return Entry{}, err
	}
	entries = append(entries, e)
	if err := r.save(entries); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// RemoveByPID drops every entry with the given pid. Reports whether
// anything was removed.
func (r *Registry) RemoveByPID(ctx context.Context, pid int) (bool, error) {
	entries, err := r.Load(ctx, false)
	if err != nil {
		return false, err
	}

	kept := entries[:0:len(entries)]
	for _, e := range entries {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	return true, r.save(kept)
}

// Clear removes all entries.
func (r *Registry) Clear() error {
	return r.save(nil)
}

// UpdateNextFire rewrites the next wake time (and optionally status) of
// the entry with the given pid. The daemon calls this as it advances
// through its schedule. A concurrent writer may overwrite this update;
// last write wins.
func (r *Registry) UpdateNextFire(ctx context.Context, pid int, next *time.Time, status *Status) error {
	entries, err := r.Load(ctx, false)
	if err != nil {
		return err
	}

	for i := range entries {
		if entries[i].PID != pid {
			continue
		}
		entries[i].NextFireAt = next
		if status != nil {
			entries[i].Status = *status
		}
	}
	return r.save(entries)
}

func (r *Registry) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// dedupe keeps, for each (pid, session id) pair, only the entry with the
// latest creation timestamp. Order of first appearance is preserved.
func dedupe(entries []Entry) []Entry {
	type key struct {
		pid    int
		sid    int
		hasSID bool
	}

	best := make(map[key]int, len(entries))
	var order []key

	for i, e := range entries {
		k := key{pid: e.PID}
		if e.SessionID != nil {
			k.sid = *e.SessionID
			k.hasSID = true
		}

		prev, seen := best[k]
		if !seen {
			best[k] = i
			order = append(order, k)
			continue
		}
		if e.CreatedAt.After(entries[prev].CreatedAt) {
			best[k] = i
		}
	}

	if len(order) == len(entries) {
		return entries
	}

	out := make([]Entry, 0, len(order))
	for _, k := range order {
		out = append(out, entries[best[k]])
	}
	return out
}

func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
