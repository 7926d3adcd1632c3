package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("forwarded", "bot_id", "RAPID")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "forwarded", rec["msg"])
	assert.Equal(t, "RAPID", rec["bot_id"])
}

func TestNew_TextFormatWithoutColorOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: "text", Writer: &buf})
	require.NoError(t, err)

	log.Warn("upstream failed", "error", errors.New("503"))

	out := buf.String()
	assert.Contains(t, out, "upstream failed")
	assert.Contains(t, out, "503")
	assert.NotContains(t, out, "\x1b[", "no ANSI colors when not a terminal")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}
