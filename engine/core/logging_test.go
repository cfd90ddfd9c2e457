package core

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l := getLogger()
	l.SetOutput(&buf)
	t.Cleanup(func() { l.SetOutput(os.Stderr) })
	return &buf
}

func TestLoggedErrorsKeepPercentSigns(t *testing.T) {
	buf := captureLog(t)

	err := &AssetError{Path: "textures/50%_gray.png", Err: os.ErrNotExist}
	LogError("%s", err)

	assert.Contains(t, buf.String(), "50%_gray.png")
	assert.NotContains(t, buf.String(), "MISSING")
}

func TestAssertLogsMessageVerbatim(t *testing.T) {
	buf := captureLog(t)

	require.Panics(t, func() { Assert(false, "heap %s is 100%% full", "rtv") })
	assert.Contains(t, buf.String(), "heap rtv is 100% full")
	assert.NotContains(t, buf.String(), "MISSING")
}
