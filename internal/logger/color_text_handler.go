package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const colorReset = "\033[0m"

// ColorTextHandler wraps slog.TextHandler and writes a colored level tag in
// front of every line for terminals. The level key is dropped from the
// text output since the tag carries it.
type ColorTextHandler struct {
	*slog.TextHandler
	out      io.Writer
	mu       *sync.Mutex   // shared by handlers derived via WithAttrs/WithGroup
	buf      *bytes.Buffer // the TextHandler renders here under mu
	showTime bool
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	user := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.LevelKey {
			return slog.Attr{}
		}
		if user != nil {
			return user(groups, a)
		}
		return a
	}
	buf := &bytes.Buffer{}
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(buf, &o),
		out:         w,
		mu:          &sync.Mutex{},
		buf:         buf,
		showTime:    showTime,
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // Red
	case l >= slog.LevelWarn:
		return "\033[33m" // Yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // Green
	default:
		return "\033[36m" // Cyan
	}
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.showTime {
		r.Time = time.Time{} // zero time is omitted by the text handler
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	if err := h.TextHandler.Handle(ctx, r); err != nil {
		return err
	}
	tag := r.Level.String()
	for len(tag) < 5 {
		tag += " "
	}
	line := make([]byte, 0, len(tag)+len(colorReset)+8+h.buf.Len())
	line = append(line, levelColor(r.Level)...)
	line = append(line, tag...)
	line = append(line, colorReset...)
	line = append(line, ' ')
	line = append(line, h.buf.Bytes()...)
	_, err := h.out.Write(line)
	return err
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.TextHandler = h.TextHandler.WithAttrs(attrs).(*slog.TextHandler)
	return &c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.TextHandler = h.TextHandler.WithGroup(name).(*slog.TextHandler)
	return &c
}
