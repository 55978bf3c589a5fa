package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the configured level and format.
// Unknown levels fall back to INFO.
func NewLogger(level, format string, disableTimestamp bool) *logrus.Logger {
	var log = logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToUpper(format) {
	case "JSON":
		log.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: disableTimestamp})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors:    false,
			DisableTimestamp: disableTimestamp,
		})
	}
	log.Out = os.Stdout
	return log
}
