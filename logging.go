package steadfast

import (
	"github.com/sirupsen/logrus"

	"github.com/efritz/steadfast/iface"
)

type (
	// Logger is an interface to the logger the connection writes to.
	Logger = iface.Logger

	nilLogger struct{}
)

// NewDefaultLogger returns the logrus standard logger.
func NewDefaultLogger() Logger {
	return logrus.StandardLogger()
}

// NewNilLogger returns a logger that discards every message.
func NewNilLogger() Logger {
	return &nilLogger{}
}

func (l *nilLogger) Printf(format string, args ...interface{}) {}
func (l *nilLogger) Errorf(format string, args ...interface{}) {}
