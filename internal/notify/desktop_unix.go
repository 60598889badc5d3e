//go:build !windows

package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop sends native desktop notifications: osascript on macOS,
// notify-send elsewhere.
type Desktop struct{}

// NewDesktop returns the platform notifier.
func NewDesktop() *Desktop { return &Desktop{} }

func (d *Desktop) Notify(title, message string) error {
	if runtime.GOOS == "darwin" {
		return notifyOsascript(title, message)
	}
	return notifyNotifySend(title, message)
}

func notifyOsascript(title, message string) error {
	bin, err := exec.LookPath("osascript")
	if err != nil {
		return fmt.Errorf("osascript not found: %w", err)
	}

	script := fmt.Sprintf("display notification %q with title %q",
		escapeAppleScript(message), escapeAppleScript(title))

	if out, err := exec.Command(bin, "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func notifyNotifySend(title, message string) error {
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return fmt.Errorf("notify-send not found: %w", err)
	}

	if out, err := exec.Command(bin, title, message).CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
