package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autumnhq/autumn/internal/api"
)

type fakeClient struct {
	sessions []api.Session
	err      error
}

func (f *fakeClient) ActiveSessions(ctx context.Context) ([]api.Session, error) {
	return f.sessions, f.err
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestActive_StandaloneAlwaysActive(t *testing.T) {
	o := NewOracle(&fakeClient{err: errors.New("backend down")})
	assert.True(t, o.Active(context.Background(), nil))
}

func TestActive_FoundWithFlag(t *testing.T) {
	tests := []struct {
		name string
		flag *bool
		want bool
	}{
		{"explicit active", boolPtr(true), true},
		{"explicit inactive", boolPtr(false), false},
		{"no flag means present in active list", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOracle(&fakeClient{sessions: []api.Session{
				{ID: 5, Project: "other"},
				{ID: 7, Project: "autumn", Active: tt.flag},
			}})
			assert.Equal(t, tt.want, o.Active(context.Background(), intPtr(7)))
		})
	}
}

func TestActive_NotInList(t *testing.T) {
	o := NewOracle(&fakeClient{sessions: []api.Session{{ID: 5}}})
	assert.False(t, o.Active(context.Background(), intPtr(7)))
}

func TestActive_BackendFailure(t *testing.T) {
	// A plain backend failure ends the reminder.
	o := NewOracle(&fakeClient{err: errors.New("ok:false")})
	assert.False(t, o.Active(context.Background(), intPtr(7)))
}

func TestActive_TransportFault(t *testing.T) {
	// A network blip must not kill a live reminder.
	o := NewOracle(&fakeClient{err: &api.TransportError{Err: errors.New("connection refused")}})
	assert.True(t, o.Active(context.Background(), intPtr(7)))
}

func TestElapsed(t *testing.T) {
	o := NewOracle(&fakeClient{sessions: []api.Session{{ID: 7, Elapsed: 90}}})
	assert.Equal(t, "1h30m", o.Elapsed(context.Background(), intPtr(7)))
}

func TestElapsed_Unknown(t *testing.T) {
	o := NewOracle(&fakeClient{err: errors.New("down")})
	assert.Equal(t, "?", o.Elapsed(context.Background(), intPtr(7)))
	assert.Equal(t, "?", o.Elapsed(context.Background(), nil))

	o = NewOracle(&fakeClient{sessions: []api.Session{{ID: 5}}})
	assert.Equal(t, "?", o.Elapsed(context.Background(), intPtr(7)))
}
