package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development gets a human readable console
// writer, every other environment gets JSON lines on stdout.
func New(environment string, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(environment, "development") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, level)
}

func NewWithWriter(out io.Writer, level string) zerolog.Logger {
	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel falls back to info for unknown values.
func ParseLevel(raw string) zerolog.Level {
	raw = strings.ToLower(strings.TrimSpace(raw))
	level, err := zerolog.ParseLevel(raw)
	if err != nil || raw == "" {
		return zerolog.InfoLevel
	}
	return level
}
