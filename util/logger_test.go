package util

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"INFO":    "info",
		" warn ":  "warn",
		"warning": "warn",
		"error":   "error",
		"bogus":   "error",
		"":        "error",
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLogLevel(input).String(), "parseLogLevel(%q)", input)
	}
}

func TestModuleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "error") })

	log := Log("ports")
	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warningf("visible %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 3")
	assert.Contains(t, out, "module=ports")
}

func TestModuleLogger_With(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "error") })

	parent := Log("lifecycle")
	child := parent.With("launch", "abc123")
	child.Debug("state changed")
	parent.Debug("no fields")

	out := buf.String()
	assert.Contains(t, out, "launch=abc123")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("launch=")))
}

func TestInitLogger_File(t *testing.T) {
	t.Setenv("TRAINBOX_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "trainbox.log")

	require.NoError(t, InitLogger(LogOptions{Level: "error", File: path, NoColor: true}))
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "error") })

	Log("store").Debugf("written to file only")
	assert.FileExists(t, path)
}
