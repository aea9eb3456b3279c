package backtrace_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databill86/scout-apm-go/internal/backtrace"
)

func TestCapture(t *testing.T) {
	frames := backtrace.Capture(50, "")
	require.NotEmpty(t, frames)

	// The innermost visible frame belongs to this test, not the agent.
	assert.Contains(t, frames[0].Function, "TestCapture")
	for _, f := range frames {
		assert.False(t, strings.Contains(f.Function, "scout-apm-go/internal/backtrace."),
			"agent frames should be filtered: %s", f.Function)
		assert.False(t, f.InApp, "no app root configured")
	}
}

func TestCaptureRespectsLimit(t *testing.T) {
	frames := backtrace.Capture(2, "")
	assert.LessOrEqual(t, len(frames), 2)
}

func TestCaptureZeroLimit(t *testing.T) {
	assert.Nil(t, backtrace.Capture(0, ""))
}

func TestCaptureMarksInAppFrames(t *testing.T) {
	all := backtrace.Capture(10, "")
	require.NotEmpty(t, all)

	// Use the test file's own directory as the app root.
	root := all[0].File
	if i := strings.LastIndex(root, "/"); i > 0 {
		root = root[:i]
	}

	frames := backtrace.Capture(10, root)
	require.NotEmpty(t, frames)
	assert.True(t, frames[0].InApp)
}
