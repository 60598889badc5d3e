// Package notify delivers best-effort desktop notifications.
package notify

// Notifier sends a desktop notification. Implementations are best-effort:
// callers in the supervision loop swallow errors, foreground commands may
// surface them.
type Notifier interface {
	Notify(title, message string) error
}

// Discard is a Notifier that does nothing. Used in tests and --dry-run.
type Discard struct{}

func (Discard) Notify(title, message string) error { return nil }

// Recorder is a Notifier that remembers every notification it was asked
// to send. Test helper.
type Recorder struct {
	Sent []Notification
	Err  error
}

// Notification is one recorded Notify call.
type Notification struct {
	Title   string
	Message string
}

func (r *Recorder) Notify(title, message string) error {
	r.Sent = append(r.Sent, Notification{Title: title, Message: message})
	return r.Err
}
