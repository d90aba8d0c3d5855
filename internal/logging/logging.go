package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger. Components derive their own entries from it
// with WithField("component", ...), so one flag controls the whole tree.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}
