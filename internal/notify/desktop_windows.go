//go:build windows

package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

// Desktop sends toast notifications through PowerShell.
type Desktop struct{}

// NewDesktop returns the platform notifier.
func NewDesktop() *Desktop { return &Desktop{} }

const toastScript = `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] > $null

$template = @"
<toast>
  <visual>
    <binding template='ToastGeneric'>
      <text>$($args[0])</text>
      <text>$($args[1])</text>
    </binding>
  </visual>
</toast>
"@

$xml = New-Object Windows.Data.Xml.Dom.XmlDocument
$xml.LoadXml($template)
$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)
$notifier = [Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Autumn')
$notifier.Show($toast)
`

func (d *Desktop) Notify(title, message string) error {
	bin, err := exec.LookPath("pwsh")
	if err != nil {
		bin, err = exec.LookPath("powershell")
	}
	if err != nil {
		return fmt.Errorf("powershell not found: %w", err)
	}

	cmd := exec.Command(bin, "-NoProfile", "-NonInteractive", "-Command", toastScript, title, message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("toast notification: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
