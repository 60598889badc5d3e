// Package session decides whether a work session is still live.
//
// The decision policy is deliberately conservative and lives here, in one
// place: a backend that answers "no" ends a supervised reminder, a backend
// that cannot be reached does not.
package session

import (
	"context"
	"errors"

	"github.com/autumnhq/autumn/internal/api"
	"github.com/autumnhq/autumn/internal/durations"
)

// StatusClient is the slice of the session service the oracle needs.
type StatusClient interface {
	ActiveSessions(ctx context.Context) ([]api.Session, error)
}

// Oracle answers session liveness questions.
type Oracle struct {
	client StatusClient
}

// NewOracle creates an Oracle backed by the given client.
func NewOracle(client StatusClient) *Oracle {
	return &Oracle{client: client}
}

// Active reports whether the given session is still running.
//
// A nil sessionID is a standalone reminder not tied to any session: it
// lives until its own schedule finishes, so the answer is always true.
// Otherwise the full active-session list is fetched and searched; querying
// by id is avoided because a "not found" from an id-scoped query is
// indistinguishable from a transient failure.
//
// Query failures collapse as follows: a transport fault (network blip)
// counts as active, any other failure counts as inactive.
func (o *Oracle) Active(ctx context.Context, sessionID *int) bool {
	if sessionID == nil {
		return true
	}

	sessions, err := o.client.ActiveSessions(ctx)
	if err != nil {
		var te *api.TransportError
		return errors.As(err, &te)
	}

	for _, s := range sessions {
		if s.ID != *sessionID {
			continue
		}
		if s.Active != nil {
			return *s.Active
		}
		// Present in the active list without an explicit flag.
		return true
	}
	return false
}

// Elapsed returns a human-readable elapsed time for the session, or "?"
// when it cannot be determined. Used to fill the {elapsed} placeholder in
// reminder messages; never an error, reminders fire regardless.
func (o *Oracle) Elapsed(ctx context.Context, sessionID *int) string {
	if sessionID == nil {
		return "?"
	}

	sessions, err := o.client.ActiveSessions(ctx)
	if err != nil {
		return "?"
	}

	for _, s := range sessions {
		if s.ID == *sessionID {
			return durations.Format(int(s.Elapsed * 60))
		}
	}
	return "?"
}
