package source

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Browser describes one supported browser and the scripts that read
// it.
type Browser struct {
	Name         string
	BundleID     string
	tabScript    string
	accessScript string
}

var Safari = Browser{
	Name:     "Safari",
	BundleID: "com.apple.Safari",
	tabScript: `
tell application "Safari"
	if not (exists document 1) then return ""
	set theURL to URL of current tab of document 1
	set theTitle to name of current tab of document 1
	return theURL & "||" & theTitle
end tell`,
	accessScript: `
tell application "Safari"
	return count of windows
end tell`,
}

var Chrome = Browser{
	Name:     "Google Chrome",
	BundleID: "com.google.Chrome",
	tabScript: `
tell application "Google Chrome"
	if not (exists active tab of front window) then return ""
	set theURL to URL of active tab of front window
	set theTitle to title of active tab of front window
	return theURL & "||" & theTitle
end tell`,
	accessScript: `
tell application "Google Chrome"
	return count of windows
end tell`,
}

// Tab is one read of a browser's active tab. All fields nil when the
// browser had nothing open or could not be read.
type Tab struct {
	URL   *string
	Title *string
	Host  *string
}

// TabSource fetches the active tab of one browser. After a failed or
// denied attempt it suppresses further script calls to that browser
// for a cooldown window, so a denied permission prompt is not
// hammered on every poll.
type TabSource struct {
	browser  Browser
	runner   Runner
	timeout  time.Duration
	cooldown time.Duration

	now func() time.Time // test seam

	mu        sync.Mutex
	denyUntil time.Time
}

// NewTabSource returns a TabSource for the given browser.
func NewTabSource(b Browser, runner Runner, timeout, cooldown time.Duration) *TabSource {
	return &TabSource{
		browser:  b,
		runner:   runner,
		timeout:  timeout,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// BundleID identifies the browser this source reads.
func (t *TabSource) BundleID() string {
	return t.browser.BundleID
}

// ActiveTab returns the browser's active tab, or an empty Tab while
// in cooldown or when the read failed.
func (t *TabSource) ActiveTab(ctx context.Context) Tab {
	if t.inCooldown() {
		return Tab{}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.runner.Run(ctx, t.browser.tabScript)
	if err != nil {
		slog.Debug("browser tab read failed", "browser", t.browser.Name, "err", err)
		t.startCooldown()
		return Tab{}
	}
	return parseTab(out)
}

// CanAccess probes the automation grant without reading tab data. A
// failed probe starts the same cooldown as a failed tab read.
func (t *TabSource) CanAccess(ctx context.Context) bool {
	if t.inCooldown() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.runner.Run(ctx, t.browser.accessScript); err != nil {
		slog.Debug("browser access probe failed", "browser", t.browser.Name, "err", err)
		t.startCooldown()
		return false
	}
	return true
}

func (t *TabSource) inCooldown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Before(t.denyUntil)
}

func (t *TabSource) startCooldown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.denyUntil = t.now().Add(t.cooldown)
}

// parseTab splits the script's "url||title" wire format and derives
// the host from the URL.
func parseTab(out string) Tab {
	if out == "" {
		return Tab{}
	}
	var tab Tab
	rawURL, title, _ := strings.Cut(out, "||")
	if rawURL != "" {
		tab.URL = &rawURL
		if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
			host := u.Hostname()
			tab.Host = &host
		}
	}
	if title != "" {
		tab.Title = &title
	}
	return tab
}
