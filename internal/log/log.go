// Package log is the leveled logger every other package in this module logs
// through.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Verbosity is the --verbosity scale: 0 = debug, 1 = info (default),
// 2 = warning, 3 = error.
type Verbosity int

const (
	VerbosityDebug Verbosity = iota
	VerbosityInfo
	VerbosityWarning
	VerbosityError
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    false,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbosity maps the CLI's 0..3 scale onto logrus's level enum.
func SetVerbosity(v Verbosity) {
	switch v {
	case VerbosityDebug:
		std.SetLevel(logrus.DebugLevel)
	case VerbosityInfo:
		std.SetLevel(logrus.InfoLevel)
	case VerbosityWarning:
		std.SetLevel(logrus.WarnLevel)
	case VerbosityError:
		std.SetLevel(logrus.ErrorLevel)
	default:
		std.SetLevel(logrus.InfoLevel)
	}
}

// Debugf logs at debug level, e.g. "file already visited" bookkeeping noise.
func Debugf(format string, args ...interface{}) {
	std.Debug(fmt.Sprintf(format, args...))
}

// Infof logs at info level, the default level for "what is happening" lines.
func Infof(format string, args ...interface{}) {
	std.Info(fmt.Sprintf(format, args...))
}

// Warnf logs at warning level for survivable, non-aborting conditions.
func Warnf(format string, args ...interface{}) {
	std.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at error level. It does not exit; callers decide whether the
// error is fatal to the current operation.
func Errorf(format string, args ...interface{}) {
	std.Error(fmt.Sprintf(format, args...))
}

// PrintError logs err, if non-nil, prefixed with context, and reports
// whether it logged anything. Call sites use it to log survivable failures
// where they happen instead of propagating every error up the stack.
func PrintError(context string, err error) bool {
	if err == nil {
		return false
	}
	Errorf("%s: %v", context, err)
	return true
}
