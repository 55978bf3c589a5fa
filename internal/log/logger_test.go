package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(tt.level, "TEXT", true)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	logger := NewLogger("info", "json", false)
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}
