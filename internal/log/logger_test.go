package log

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelParsing(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		logger := NewWithWriter(tc.level, io.Discard)
		if got := logger.GetLevel(); got != tc.want {
			t.Fatalf("level %q: expected %v, got %v", tc.level, tc.want, got)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)

	logger.Debug().Msg("suppressed line")
	logger.Info().Msg("visible line")

	out := buf.String()
	if strings.Contains(out, "suppressed line") {
		t.Fatalf("debug output leaked at info level: %s", out)
	}
	if !strings.Contains(out, "visible line") {
		t.Fatalf("info output missing: %s", out)
	}
}
