// Package reminder implements the reminder/auto-stop schedule engine shared
// by the foreground path and the detached worker process.
package reminder

import (
	"fmt"
	"strings"

	"github.com/autumnhq/autumn/internal/durations"
)

// MinPollSeconds bounds how long the engine may sleep between session
// liveness checks.
const MinPollSeconds = 5

// DefaultMessage is the reminder message template when none is given.
const DefaultMessage = "Timer running: {project} ({elapsed})"

// DefaultTitle is the notification title when none is given.
const DefaultTitle = "Autumn"

// Plan is a fully resolved, immutable reminder/auto-stop schedule.
// All delays are whole seconds relative to the moment the plan starts
// executing.
type Plan struct {
	SessionID     *int
	Project       string
	NotifyTitle   string
	RemindIn      *int
	RemindEvery   *int
	AutoStopAfter *int
	Message       string
	PollSeconds   int
}

// Validate checks the plan's invariants: one-shot and periodic reminders
// are mutually exclusive, auto-stop needs a session to stop, the poll
// interval has a floor, and at least one schedule piece must be present.
func (p Plan) Validate() error {
	if p.RemindIn != nil && p.RemindEvery != nil {
		return fmt.Errorf("remind-in and remind-every are mutually exclusive")
	}
	if p.RemindIn == nil && p.RemindEvery == nil && p.AutoStopAfter == nil {
		return fmt.Errorf("plan has no schedule: set remind-in, remind-every, or auto-stop")
	}
	if p.AutoStopAfter != nil && p.SessionID == nil {
		return fmt.Errorf("auto-stop requires a session id")
	}
	if p.PollSeconds < MinPollSeconds {
		return fmt.Errorf("poll interval must be >= %ds", MinPollSeconds)
	}
	for name, v := range map[string]*int{"remind-in": p.RemindIn, "remind-every": p.RemindEvery, "auto-stop": p.AutoStopAfter} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	return nil
}

// PlanFromStrings parses duration strings into a Plan. Empty strings mean
// "not set". poll falls back to 30s when empty.
func PlanFromStrings(sessionID *int, project, title, remindIn, remindEvery, autoStopFor, message, poll string) (Plan, error) {
	p := Plan{
		SessionID:   sessionID,
		Project:     project,
		NotifyTitle: title,
		Message:     message,
	}
	if p.NotifyTitle == "" {
		p.NotifyTitle = DefaultTitle
	}
	if p.Message == "" {
		p.Message = DefaultMessage
	}
	if poll == "" {
		poll = "30s"
	}

	parseOpt := func(name, raw string) (*int, error) {
		if raw == "" {
			return nil, nil
		}
		secs, err := durations.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s duration: %w", name, err)
		}
		return &secs, nil
	}

	var err error
	if p.RemindIn, err = parseOpt("remind-in", remindIn); err != nil {
		return Plan{}, err
	}
	if p.RemindEvery, err = parseOpt("remind-every", remindEvery); err != nil {
		return Plan{}, err
	}
	if p.AutoStopAfter, err = parseOpt("auto-stop", autoStopFor); err != nil {
		return Plan{}, err
	}

	pollSecs, err := durations.Parse(poll)
	if err != nil {
		return Plan{}, fmt.Errorf("invalid poll duration: %w", err)
	}
	p.PollSeconds = pollSecs

	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// FormatMessage substitutes the {project} and {elapsed} placeholders.
func FormatMessage(template, project, elapsed string) string {
	return strings.NewReplacer("{project}", project, "{elapsed}", elapsed).Replace(template)
}
