package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for every lumberjack-backed file.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output formats accepted in configuration.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config groups the supervisor's own event log (Slog) and the optional
// per-process raw output files (File).
type Config struct {
	Slog SlogConfig
	File FileConfig
}

// SlogConfig describes the structured event sink.
// When Path is empty records go to stderr.
type SlogConfig struct {
	Level      string // debug, info, warn, error (default info)
	Format     string // text or json (default text)
	Color      bool   // ANSI colors; ignored when writing to a file
	TimeStamps bool   // include the time attribute
	Path       string // log file, rotated by lumberjack
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileConfig describes where raw child output is copied.
// If StdoutPath/StderrPath are empty and Dir is set, files will be
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
type FileConfig struct {
	Dir        string
	StdoutPath string
	StderrPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel maps a configuration level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewSlogger builds the structured logger described by c.Slog. The returned
// closer releases the log file and must be called on shutdown; it is a no-op
// when logging to stderr.
func (c Config) NewSlogger() (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Slog.Level)
	if err != nil {
		return nil, nil, err
	}
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
		toFile bool
	)
	if c.Slog.Path != "" {
		if dir := filepath.Dir(c.Slog.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f := &lj.Logger{
			Filename:   c.Slog.Path,
			MaxSize:    valOr(c.Slog.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.Slog.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.Slog.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Slog.Compress,
		}
		w, closer, toFile = f, f, true
	}
	return slog.New(c.newHandler(w, level, toFile)), closer, nil
}

// NewHandler builds a handler writing to w; exposed for tests and embedders.
func (c Config) NewHandler(w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(c.Slog.Level)
	if err != nil {
		return nil, err
	}
	return c.newHandler(w, level, true), nil
}

func (c Config) newHandler(w io.Writer, level slog.Level, toFile bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	switch {
	case strings.EqualFold(c.Slog.Format, FormatJSON):
		return slog.NewJSONHandler(w, opts)
	case c.Slog.Color && !toFile:
		return NewColorTextHandler(w, opts, c.Slog.TimeStamps)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// ProcessWriters returns io.WriteClosers for stdout and stderr for the given
// process name. Both are nil when no destination is configured.
func (f FileConfig) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := f.StdoutPath
	stderr := f.StderrPath
	if stdout == "" && f.Dir != "" {
		stdout = filepath.Join(f.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && f.Dir != "" {
		stderr = filepath.Join(f.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	if f.Dir != "" {
		if err := os.MkdirAll(f.Dir, 0o750); err != nil {
			return nil, nil, err
		}
	}
	var outW, errW io.WriteCloser
	if stdout != "" {
		outW = f.rotating(stdout)
	}
	if stderr != "" {
		errW = f.rotating(stderr)
	}
	return outW, errW, nil
}

func (f FileConfig) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
