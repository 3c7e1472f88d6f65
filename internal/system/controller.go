// Package system launches desktop applications and reports host status.
package system

import (
	"context"
	"fmt"
	log "log/slog"
	"os/exec"
	"runtime"
	"strings"
)

type App string

const (
	Calculator App = "calculator"
	Editor     App = "editor"
	Browser    App = "browser"
)

type launcher struct {
	argv []string
	ok   string
}

var launchers = map[string]map[App]launcher{
	"windows": {
		Calculator: {[]string{"calc.exe"}, "Calculator opened successfully"},
		Editor:     {[]string{"notepad.exe"}, "Notepad opened successfully"},
		Browser:    {[]string{"cmd", "/c", "start", "chrome"}, "Browser opened successfully"},
	},
	"darwin": {
		Calculator: {[]string{"open", "-a", "Calculator"}, "Calculator opened successfully"},
		Editor:     {[]string{"open", "-a", "TextEdit"}, "TextEdit opened successfully"},
		Browser:    {[]string{"open", "-a", "Google Chrome"}, "Browser opened successfully"},
	},
	"linux": {
		Calculator: {[]string{"gnome-calculator"}, "Calculator opened successfully"},
		Editor:     {[]string{"gedit"}, "Text editor opened successfully"},
		Browser:    {[]string{"google-chrome"}, "Browser opened successfully"},
	},
}

var appLabels = map[App]string{
	Calculator: "calculator",
	Editor:     "text editor",
	Browser:    "browser",
}

// dangerous substrings that are never acted upon
var dangerous = []string{
	"rm -rf", "del *", "format", "fdisk", "mkfs",
	"shutdown -r now", "reboot", "halt", "poweroff",
}

// Starter spawns a process without waiting for it.
type Starter func(name string, args ...string) error

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug("Launched process exited", "cmd", name, "err", err)
		}
	}()
	return nil
}

type Controller struct {
	goos  string
	start Starter
	probe *Probe
}

type Option func(*Controller)

// WithOS overrides runtime.GOOS for the launch table.
func WithOS(goos string) Option {
	return func(c *Controller) { c.goos = goos }
}

func WithStarter(s Starter) Option {
	return func(c *Controller) { c.start = s }
}

func WithProbe(p *Probe) Option {
	return func(c *Controller) { c.probe = p }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		goos:  runtime.GOOS,
		start: startDetached,
		probe: NewProbe(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Safe reports whether command contains none of the destructive patterns.
func Safe(command string) bool {
	lc := strings.ToLower(command)
	for _, kw := range dangerous {
		if strings.Contains(lc, kw) {
			return false
		}
	}
	return true
}

// Execute maps a command to an action and always answers with a sentence.
// It only sees commands the classifier tagged as system commands, so the
// status branch answers phrases like "open system status"; a bare
// "system status" never reaches it.
func (c *Controller) Execute(ctx context.Context, command string) string {
	lc := strings.ToLower(strings.TrimSpace(command))
	launch := strings.Contains(lc, "open") || strings.Contains(lc, "launch")

	switch {
	case !Safe(lc):
		log.Warn("Refused dangerous command", "command", command)
		return "I can't do that. The command looks destructive and was blocked for safety"
	case launch && strings.Contains(lc, "calculator"):
		return c.Open(Calculator)
	case launch && containsAny(lc, "notepad", "editor", "textedit"):
		return c.Open(Editor)
	case launch && containsAny(lc, "browser", "chrome"):
		return c.Open(Browser)
	case containsAny(lc, "shutdown", "restart"):
		return "Shutdown and restart are not allowed from the assistant"
	case containsAny(lc, "system info", "system status"):
		return c.StatusReport(ctx)
	default:
		return fmt.Sprintf("Command '%s' not recognized or not implemented in demo mode", command)
	}
}

// Open launches app using the table for the controller's OS.
func (c *Controller) Open(app App) string {
	label := appLabels[app]

	l, ok := launchers[c.goos][app]
	if !ok {
		return capitalize(label) + " not available for this system"
	}

	if err := c.start(l.argv[0], l.argv[1:]...); err != nil {
		log.Warn("Failed to launch", "app", app, "err", err)
		return fmt.Sprintf("Could not open %s: %v", label, err)
	}

	log.Info("Launched", "app", app, "argv", l.argv)
	return l.ok
}

// StatusReport formats Status for the chat.
func (c *Controller) StatusReport(ctx context.Context) string {
	st, err := c.probe.Status(ctx)
	if err != nil {
		return fmt.Sprintf("Could not retrieve system status: %v", err)
	}
	return st.Report()
}

func (c *Controller) Probe() *Probe {
	return c.probe
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
