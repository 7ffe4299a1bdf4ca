// Package logging provides component-scoped loggers for the stemsep
// libraries and CLI.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used throughout stemsep.
type Logger = *logrus.Entry

// NewLogger returns a logger scoped to the given component. The log level
// can be raised via the STEMSEP_LOG_LEVEL environment variable.
func NewLogger(component string) Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(os.Getenv("STEMSEP_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
	return log.WithField("component", component)
}
