package source

import (
	"context"
	"strings"
	"time"
)

const frontmostScript = `
tell application "System Events"
	set frontProc to first application process whose frontmost is true
	return (name of frontProc) & "||" & (bundle identifier of frontProc)
end tell`

// Reading the focused window's name requires the accessibility grant;
// without it System Events returns an error and the title stays nil.
const windowTitleScript = `
tell application "System Events"
	tell (first application process whose frontmost is true)
		if (count of windows) is 0 then return ""
		return name of front window
	end tell
end tell`

const windowCountScript = `
tell application "System Events"
	tell (first application process whose frontmost is true)
		return count of windows
	end tell
end tell`

// AppInfo identifies the foreground application.
type AppInfo struct {
	Name     string
	BundleID string
}

// Desktop reads the frontmost application and its focused window.
type Desktop struct {
	runner  Runner
	timeout time.Duration
}

// NewDesktop returns a Desktop whose reads abort after timeout.
func NewDesktop(runner Runner, timeout time.Duration) *Desktop {
	return &Desktop{runner: runner, timeout: timeout}
}

// FrontmostApp reports the foreground application, or nil when there
// is none or the read failed.
func (d *Desktop) FrontmostApp(ctx context.Context) (*AppInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.runner.Run(ctx, frontmostScript)
	if err != nil {
		return nil, err
	}
	name, bundle, ok := strings.Cut(out, "||")
	if !ok || name == "" || bundle == "" {
		return nil, nil
	}
	return &AppInfo{Name: name, BundleID: bundle}, nil
}

// WindowTitle returns the focused window title of the frontmost
// application, or nil when the accessibility permission is missing,
// the app has no windows, or the read failed.
func (d *Desktop) WindowTitle(ctx context.Context) *string {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.runner.Run(ctx, windowTitleScript)
	if err != nil || out == "" {
		return nil
	}
	return &out
}

// CanReadWindows probes the accessibility grant without collecting
// any window data.
func (d *Desktop) CanReadWindows(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.runner.Run(ctx, windowCountScript)
	return err == nil
}
