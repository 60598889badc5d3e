package reminder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFromStrings(t *testing.T) {
	p, err := PlanFromStrings(intPtr(7), "autumn", "", "5m", "", "1h", "", "")
	require.NoError(t, err)

	require.NotNil(t, p.RemindIn)
	assert.Equal(t, 300, *p.RemindIn)
	assert.Nil(t, p.RemindEvery)
	require.NotNil(t, p.AutoStopAfter)
	assert.Equal(t, 3600, *p.AutoStopAfter)
	assert.Equal(t, 30, p.PollSeconds)
	assert.Equal(t, DefaultTitle, p.NotifyTitle)
	assert.Equal(t, DefaultMessage, p.Message)
}

func TestPlanFromStrings_Errors(t *testing.T) {
	tests := []struct {
		name                                  string
		sessionID                             *int
		remindIn, remindEvery, autoStop, poll string
	}{
		{"both remind flags", intPtr(1), "5m", "10m", "", ""},
		{"bad remind-in", intPtr(1), "5x", "", "", ""},
		{"bad remind-every", intPtr(1), "", "abc", "", ""},
		{"bad auto-stop", intPtr(1), "", "", "1h30", ""},
		{"poll below minimum", intPtr(1), "5m", "", "", "2s"},
		{"bad poll", intPtr(1), "5m", "", "", "zzz"},
		{"no schedule at all", intPtr(1), "", "", "", ""},
		{"auto-stop without session", nil, "", "", "1h", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanFromStrings(tt.sessionID, "p", "", tt.remindIn, tt.remindEvery, tt.autoStop, "", tt.poll)
			assert.Error(t, err)
		})
	}
}

func TestPlanValidate_MutualExclusion(t *testing.T) {
	p := Plan{Project: "p", RemindIn: intPtr(60), RemindEvery: intPtr(60), PollSeconds: 30}
	assert.Error(t, p.Validate())
}

func TestFormatMessage(t *testing.T) {
	got := FormatMessage("Timer running: {project} ({elapsed})", "autumn", "1h30m")
	assert.Equal(t, "Timer running: autumn (1h30m)", got)

	// Placeholders may repeat or be absent.
	assert.Equal(t, "a a", FormatMessage("{project} {project}", "a", ""))
	assert.Equal(t, "plain", FormatMessage("plain", "a", "b"))
}
