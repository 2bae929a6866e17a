// Package log собирает slog логгеры приложения.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/golang-cz/devslog"
	"github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"
)

// Форматы вывода
const (
	FormatConsole = "console"
	FormatDev     = "dev"
	FormatJSON    = "json"
)

// ErrUnknownFormat неизвестный формат вывода
var ErrUnknownFormat = errors.New("unknown log format")

var newHandler = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
	slogformatter.FormatByType(func(u sip.Uri) slog.Value {
		return slog.StringValue(u.String())
	}),
	slogformatter.FormatByType(func(req *sip.Request) slog.Value {
		if req == nil {
			return slog.StringValue("<nil>")
		}
		attrs := []slog.Attr{slog.String("method", req.Method.String())}
		if h := req.CallID(); h != nil {
			attrs = append(attrs, slog.String("call_id", h.Value()))
		}
		if h := req.CSeq(); h != nil {
			attrs = append(attrs, slog.Uint64("cseq", uint64(h.SeqNo)))
		}
		return slog.GroupValue(attrs...)
	}),
	slogformatter.FormatByType(func(resp *sip.Response) slog.Value {
		if resp == nil {
			return slog.StringValue("<nil>")
		}
		return slog.GroupValue(
			slog.Int("status", int(resp.StatusCode)),
			slog.String("reason", resp.Reason),
		)
	}),
)

// New логгер заданного формата и уровня
func New(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	var h slog.Handler
	switch strings.ToLower(format) {
	case FormatConsole, "":
		h = console.NewHandler(w, &console.HandlerOptions{
			Level:      level,
			TimeFormat: time.RFC3339Nano,
		})
	case FormatDev:
		h = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				AddSource: true,
				Level:     level,
			},
			SortKeys:   true,
			TimeFormat: time.RFC3339Nano,
		})
	case FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return slog.New(newHandler(h)), nil
}

// ParseLevel разбирает уровень: debug, info, warn, error
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (noopHandler) Handle(context.Context, slog.Record) error { return nil }

func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h noopHandler) WithGroup(string) slog.Handler { return h }

// Noop логгер, который ничего не пишет
var Noop = slog.New(noopHandler{})
