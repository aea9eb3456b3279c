// Package backtrace captures bounded call-stack snapshots for N+1 findings.
//
// Capture walks the caller's stack with runtime.CallersFrames, skips the
// agent's own frames, and marks each remaining frame as in-app or library
// using the configured application root. Capture is the single expensive
// operation in the agent, which is why callers rate-limit it.
package backtrace

import (
	"runtime"
	"strings"
)

// Frame is one resolved stack frame.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	InApp    bool   `json:"in_app"`
}

// Packages on the capture call chain; their frames are noise in a finding.
var agentPackages = []string{
	"scout-apm-go/internal/backtrace.",
	"scout-apm-go/internal/callset.",
	"scout-apm-go/internal/tracked.",
}

func agentFrame(function string) bool {
	for _, pkg := range agentPackages {
		if strings.Contains(function, pkg) {
			return true
		}
	}
	return false
}

// Capture returns up to limit frames above the caller, innermost first.
// appRoot may be empty, in which case no frame is marked in-app.
func Capture(limit int, appRoot string) []Frame {
	if limit <= 0 {
		return nil
	}

	// +2 skips runtime.Callers and Capture itself; agent-internal frames
	// above that are filtered by function name below.
	pcs := make([]uintptr, limit+16)
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, limit)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !agentFrame(frame.Function) {
			out = append(out, Frame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
				InApp:    inApp(frame.File, appRoot),
			})
		}
		if !more || len(out) >= limit {
			break
		}
	}
	return out
}

func inApp(file, appRoot string) bool {
	return appRoot != "" && strings.HasPrefix(file, appRoot)
}
