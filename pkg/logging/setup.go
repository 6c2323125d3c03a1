package logging

import (
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide logger. Format is either "json" for
// machine-readable output or anything else for the colored console formatter.
func NewLogger(level, format string) *logrus.Logger {
	log := logrus.New()

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(NewColoredJSONFormatter())
	}

	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	} else {
		log.SetLevel(logrus.InfoLevel)
		if level != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": level,
				"default_level":   "INFO",
			}).Warn("Invalid log level specified, defaulting to INFO")
		}
	}

	return log
}
