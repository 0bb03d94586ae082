package source

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// HIDIdleTime is reported by the IOHIDSystem registry entry in
// nanoseconds.
var hidIdlePattern = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

// IdleDetector reports seconds since the last user input.
type IdleDetector struct {
	run     func(ctx context.Context) (string, error) // test seam
	timeout time.Duration
}

// NewIdleDetector returns a detector backed by ioreg.
func NewIdleDetector(timeout time.Duration) *IdleDetector {
	return &IdleDetector{run: runIOReg, timeout: timeout}
}

// IdleSeconds returns the elapsed idle time. A failed or unparseable
// read reports zero: a broken detector must keep the tracker
// recording rather than spuriously closing sessions.
func (d *IdleDetector) IdleSeconds(ctx context.Context) float64 {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.run(ctx)
	if err != nil {
		slog.Debug("idle read failed", "err", err)
		return 0
	}
	m := hidIdlePattern.FindStringSubmatch(out)
	if m == nil {
		return 0
	}
	ns, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return float64(ns) / float64(time.Second)
}

func runIOReg(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "/usr/sbin/ioreg", "-c", "IOHIDSystem", "-d", "4").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
