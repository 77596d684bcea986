// Package console provides the agent's logger: zap for structure and levels,
// fatih/color for the green success / red failure / yellow banner channels.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted by New.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Logger wraps zap's SugaredLogger and adds the coloured channels.
type Logger struct {
	*zap.SugaredLogger

	success *color.Color
	failure *color.Color
	banner  *color.Color
}

// defaultLevel is used when an unknown level string is provided.
const defaultLevel = zapcore.InfoLevel

func toZapLevel(level string) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultLevel
	}
}

// ColorEnabled reports whether w should receive ANSI colours.
// Colours are off when disabled explicitly or when w is not a terminal.
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// New builds a Logger writing console-encoded lines to w.
func New(w io.Writer, level string, colored bool) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(toZapLevel(level)),
	)

	return wrap(zap.New(core).Sugar(), colored)
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() *Logger {
	return wrap(zap.NewNop().Sugar(), false)
}

func wrap(s *zap.SugaredLogger, colored bool) *Logger {
	l := &Logger{
		SugaredLogger: s,
		success:       color.New(color.FgGreen),
		failure:       color.New(color.FgRed),
		banner:        color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{l.success, l.failure, l.banner} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return l
}

// Success logs a green line at info level.
func (l *Logger) Success(format string, args ...interface{}) {
	l.Info(l.success.Sprint(fmt.Sprintf(format, args...)))
}

// Failure logs a red line at error level.
func (l *Logger) Failure(format string, args ...interface{}) {
	l.Error(l.failure.Sprint(fmt.Sprintf(format, args...)))
}

// Banner logs a yellow line at info level.
func (l *Logger) Banner(text string) {
	l.Info(l.banner.Sprint(text))
}
