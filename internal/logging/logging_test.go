package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{" WARN ", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "floatdrop.log")
	logger := logrus.New()

	closer, err := SetupLogger(logger, config.LoggingConfig{Level: "debug", File: path})
	require.NoError(t, err)

	logger.WithField("component", "test").Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "component=test")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	closer, err := SetupLogger(logrus.New(), config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
	assert.NotNil(t, closer)
}
