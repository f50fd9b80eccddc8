package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements the ports.Logger interface on top of logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// ParseLevel converts a string level to a logrus level, defaulting to Info on
// unknown input instead of failing.
func ParseLevel(levelStr string) logrus.Level {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// New creates a logger writing to stderr with the given level and component
// name. The name appears as a field on every line, matching how the rest of
// the application tags its subsystems.
func New(name string, level logrus.Level) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return &LogrusLogger{entry: l.WithField("component", name)}
}

// Named returns a logger sharing the backend but tagged with a different
// component name.
func (l *LogrusLogger) Named(name string) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.Logger.WithField("component", name)}
}

func (l *LogrusLogger) withFields(fields ...map[string]interface{}) *logrus.Entry {
	entry := l.entry
	if len(fields) > 0 && fields[0] != nil {
		entry = entry.WithFields(logrus.Fields(fields[0]))
	}
	return entry
}

// Debug logs a message at Debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(fields...).Debug(msg)
}

// Info logs a message at Info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(fields...).Info(msg)
}

// Warn logs a message at Warning level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.withFields(fields...).Warn(msg)
}

// Error logs an error message at Error level.
func (l *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	entry := l.withFields(fields...)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}
