package logger

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// maxLineBytes bounds how much of an unterminated line is buffered before it
// is emitted as its own record.
const maxLineBytes = 64 * 1024

// LineWriter turns a byte stream (a child's stdout or stderr) into one slog
// record per line. Partial lines are kept until the next newline or Close.
type LineWriter struct {
	mu     sync.Mutex
	log    *slog.Logger
	level  slog.Level
	buf    []byte
	closed bool
}

// NewLineWriter returns a writer that logs each line at level via l.
func NewLineWriter(l *slog.Logger, level slog.Level) *LineWriter {
	return &LineWriter{log: l, level: level}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emitChunks(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineBytes {
		w.emit(w.buf[:maxLineBytes])
		w.buf = w.buf[maxLineBytes:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}

// Close flushes any pending partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if len(w.buf) > 0 {
		w.emitChunks(w.buf)
		w.buf = nil
	}
	w.closed = true
	return nil
}

// emitChunks logs line as records of at most maxLineBytes each.
func (w *LineWriter) emitChunks(line []byte) {
	for len(line) > maxLineBytes {
		w.emit(line[:maxLineBytes])
		line = line[maxLineBytes:]
	}
	w.emit(line)
}

func (w *LineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.log.Log(context.Background(), w.level, string(line))
}
