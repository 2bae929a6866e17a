package log_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/ims_phone/internal/log"
)

func TestNew_JSONFormatsSipValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.New(&buf, log.FormatJSON, slog.LevelDebug)
	require.NoError(t, err)

	logger.Info("subscribe",
		slog.Any("target", sip.Uri{Scheme: "sip", User: "alice_rcs_list", Host: "ims.example.com"}),
		slog.Any("error", errors.New("boom")),
	)

	out := buf.String()
	assert.Contains(t, out, `"target":"sip:alice_rcs_list@ims.example.com"`)
	assert.Contains(t, out, "boom")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.New(&buf, log.FormatJSON, slog.LevelWarn)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{log.FormatConsole, log.FormatDev, log.FormatJSON, ""} {
		var buf bytes.Buffer
		logger, err := log.New(&buf, format, slog.LevelInfo)
		require.NoError(t, err, format)
		logger.Info("hello")
		assert.Contains(t, buf.String(), "hello", format)
	}

	_, err := log.New(&bytes.Buffer{}, "xml", slog.LevelInfo)
	assert.ErrorIs(t, err, log.ErrUnknownFormat)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := log.ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNoop(t *testing.T) {
	assert.False(t, log.Noop.Enabled(context.Background(), slog.LevelError))
	log.Noop.Error("nothing")
}
