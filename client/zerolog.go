package client

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface. It is the
// recommended production logger; the default logger exists so the driver has
// no hard logging dependency at runtime.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a Logger backed by zerolog writing to output.
func NewZerologLogger(level string, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}

	zlevel := zerolog.InfoLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		zlevel = zerolog.DebugLevel
	case "INFO":
		zlevel = zerolog.InfoLevel
	case "WARN":
		zlevel = zerolog.WarnLevel
	case "ERROR":
		zlevel = zerolog.ErrorLevel
	}

	zl := zerolog.New(output).Level(zlevel).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// WrapZerolog adapts an existing zerolog.Logger, preserving its level and
// context fields.
func WrapZerolog(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) WithFields(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range redactSensitiveFields(fields) {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range redactSensitiveFields(fields) {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}
