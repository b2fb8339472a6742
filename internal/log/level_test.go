package log

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}

	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLookupLevel(t *testing.T) {
	if _, ok := LookupLevel("verbose"); ok {
		t.Error("LookupLevel(verbose) should fail")
	}
	if l, ok := LookupLevel("Warning"); !ok || l != LevelWarn {
		t.Errorf("LookupLevel(Warning) = %v, %v", l, ok)
	}
}

func TestLevelText(t *testing.T) {
	var l Level
	if err := l.UnmarshalText([]byte("error")); err != nil || l != LevelError {
		t.Errorf("UnmarshalText(error) = %v, %v", l, err)
	}
	if err := l.UnmarshalText([]byte("loud")); err == nil {
		t.Error("UnmarshalText(loud) should fail")
	}

	text, err := LevelWarn.MarshalText()
	if err != nil || string(text) != "warn" {
		t.Errorf("MarshalText() = %q, %v", text, err)
	}
}

func TestLevelToSlog(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
		str   string
	}{
		{LevelDebug, slog.LevelDebug, "DEBUG"},
		{LevelInfo, slog.LevelInfo, "INFO"},
		{LevelWarn, slog.LevelWarn, "WARN"},
		{LevelError, slog.LevelError, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.ToSlogLevel(); got != tt.want {
			t.Errorf("%v.ToSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
		if got := tt.level.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
	}

	if Level(42).String() != "UNKNOWN" {
		t.Error("unknown level should stringify as UNKNOWN")
	}
	if Level(-1).ToSlogLevel() != slog.LevelInfo {
		t.Error("out-of-range level should map to info")
	}
}
