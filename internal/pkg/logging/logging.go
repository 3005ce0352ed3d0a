package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the process logger: human-readable text in dev, JSON otherwise.
func New(appEnv string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)
	if appEnv == "dev" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return logger
	}
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

// Discard returns a logger that drops everything, for tests and defaults.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
