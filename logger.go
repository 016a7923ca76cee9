package nsqc

import (
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel mirrors syslog-style severities; Conn/Producer/Consumer/the
// lookup poller tag every log call with one.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the injectable sink for every diagnostic message the core
// emits. It generalizes the teacher's bare log.Printf("[%s] ...", c) calls
// into something callers can redirect or filter.
type Logger interface {
	Output(level LogLevel, format string, args ...interface{})
}

// stdLogger is the default Logger, matching the teacher's plain stdlib
// usage (log.Printf to stderr with the standard flags plus microseconds).
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger returns the default Logger: a *log.Logger writing to
// os.Stderr with prefix/flags matching the teacher's own defaults.
func NewStdLogger() Logger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (s *stdLogger) Output(level LogLevel, format string, args ...interface{}) {
	s.l.Printf("["+level.String()+"] "+format, args...)
}

// logrusLogger adapts a *logrus.Logger (or Entry) to the Logger interface,
// for callers who already run a logrus-based service and want Conn and its
// peers to log through the same pipeline/formatter rather than raw stderr.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l as a Logger. A nil l uses logrus.StandardLogger().
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (g *logrusLogger) Output(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogLevelDebug:
		g.entry.Debugf(format, args...)
	case LogLevelInfo:
		g.entry.Infof(format, args...)
	case LogLevelWarning:
		g.entry.Warnf(format, args...)
	default:
		g.entry.Errorf(format, args...)
	}
}

// discardLogger drops everything.
type discardLogger struct{}

func (discardLogger) Output(LogLevel, string, ...interface{}) {}

// NewDiscardLogger returns a Logger that drops every message, for tests
// and other callers that want Conn/Producer/Consumer's default verbosity
// silenced entirely rather than redirected.
func NewDiscardLogger() Logger {
	return discardLogger{}
}
