package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/internal/config"
)

func TestNew_Fallback(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	logger.Info("hidden")
	logger.WithField("file", "a.js").Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "file=a.js")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsinspect.log")
	logger, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &bytes.Buffer{})
	require.NoError(t, err)

	logger.WithField("file", "a.js").Info("analyzed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"analyzed"`)
}

func TestNew_FileIsDirectory(t *testing.T) {
	_, err := New(config.LogConfig{Level: "info", File: t.TempDir()}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
