// Package logger builds the zerolog loggers shared by the API and the
// simulator.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New logs JSON to stdout, or colourised console lines when pretty is set.
// Unknown level names fall back to info.
func New(level string, pretty bool) zerolog.Logger {
	if !pretty {
		return build(os.Stdout, level).Caller().Logger()
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	return build(console, level).Caller().Logger()
}

// NewWithWriter logs JSON to w without caller information.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	return build(w, level).Logger()
}

// Component tags every entry of log with the emitting component.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func build(w io.Writer, level string) zerolog.Context {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp()
}

// ParseLevel is zerolog.ParseLevel made case-insensitive, with info for
// anything unrecognised or empty.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
