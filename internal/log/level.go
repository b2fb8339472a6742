package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is a log severity. Values map one-to-one onto slog levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var slogLevels = [...]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// String returns the level the way slog prints it, e.g. "WARN"
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return slogLevels[l].String()
}

// ToSlogLevel converts l to slog.Level. Out-of-range levels log at info.
func (l Level) ToSlogLevel() slog.Level {
	if l < LevelDebug || l > LevelError {
		return slog.LevelInfo
	}
	return slogLevels[l]
}

// LookupLevel parses a configured level name, case-insensitively
func LookupLevel(s string) (Level, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// ParseLevel is LookupLevel with an info fallback
func ParseLevel(s string) Level {
	if l, ok := LookupLevel(s); ok {
		return l
	}
	return LevelInfo
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are an error.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := LookupLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown log level %q", text)
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}
