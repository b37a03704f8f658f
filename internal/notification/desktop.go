package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const appName = "ImanConnect"

// desktopCommand turns a notification into the program and arguments that
// raise it on one platform.
type desktopCommand func(title, message string, urgent bool) (string, []string)

var desktopCommands = map[string]desktopCommand{
	"linux":   notifySend,
	"darwin":  appleScript,
	"windows": powerShellBalloon,
}

// osNotificationChannel raises desktop notifications through the platform's own tool
type osNotificationChannel struct {
	config       *OSNotificationConfig
	executor     CommandExecutor
	platform     string
	sendCallback func(Notification)
}

// NewOSNotificationChannel creates a new OS notification channel
func NewOSNotificationChannel(cfg *OSNotificationConfig, opts ...Option) NotificationChannel {
	ch := &osNotificationChannel{config: cfg, platform: runtime.GOOS}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.executor == nil {
		ch.executor = execCommand{}
	}
	return ch
}

// Send raises n on the desktop if its type is enabled.
func (c *osNotificationChannel) Send(n Notification) error {
	if !c.wants(n.Type) {
		return nil
	}
	if c.sendCallback != nil {
		c.sendCallback(n)
	}

	build, ok := desktopCommands[c.platform]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
	name, args := build(n.Title, n.Message, urgent(n.Type))
	if err := c.executor.Execute(name, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *osNotificationChannel) wants(t NotificationType) bool {
	switch t {
	case NotifyQuestionSubmitted:
		return c.config.OnQuestion
	case NotifyQuestionAnswered, NotifyQuestionRejected:
		return c.config.OnAnswer
	case NotifyBackupFailed:
		return c.config.OnBackupFailure
	case NotifyBackupCompleted:
		return false
	}
	return true
}

// urgent types stay on screen until dismissed where the platform allows it.
func urgent(t NotificationType) bool {
	return t == NotifyPrayerReminder || t == NotifyBackupFailed
}

func (c *osNotificationChannel) Close() error { return nil }

func notifySend(title, message string, urgent bool) (string, []string) {
	level := "normal"
	if urgent {
		level = "critical"
	}
	return "notify-send", []string{"-a", appName, "-u", level, title, message}
}

// appleScript quotes title and message for an AppleScript string literal so
// neither can close the literal early.
func appleScript(title, message string, urgent bool) (string, []string) {
	quote := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace
	script := fmt.Sprintf(`display notification "%s" with title "%s" subtitle "%s"`,
		quote(message), quote(title), appName)
	if urgent {
		script += ` sound name "Glass"`
	}
	return "osascript", []string{"-e", script}
}

// powerShellBalloon escapes the PowerShell metacharacters that are live inside
// a double-quoted string: backtick, quote and dollar.
func powerShellBalloon(title, message string, urgent bool) (string, []string) {
	quote := strings.NewReplacer("`", "``", `"`, "`\"", "$", "`$").Replace
	timeout := 5000
	if urgent {
		timeout = 30000
	}
	script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.BalloonTipTitle = "%s"
$n.BalloonTipText = "%s"
$n.Visible = $true
$n.ShowBalloonTip(%d)`, quote(title), quote(message), timeout)
	return "powershell", []string{"-NoProfile", "-Command", script}
}

type execCommand struct{}

func (execCommand) Execute(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}
