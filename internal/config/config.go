package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/watchdog/internal/logger"
	"github.com/loykin/watchdog/internal/process"
	"github.com/loykin/watchdog/internal/supervisor"
)

// ErrConfigUnreadable wraps every load failure: a missing or unparseable
// file, or an invalid entry. Startup aborts on it.
var ErrConfigUnreadable = errors.New("config unreadable")

const (
	DefaultFile    = "processes.ini"
	DefaultLogFile = "watchdog.log"
	// GlobalSection is the reserved ini section holding global knobs.
	GlobalSection = "watchdog"
)

// Global holds the settings that apply to the whole supervisor.
type Global struct {
	PollInterval  time.Duration
	Policy        supervisor.Policy
	Log           logger.SlogConfig
	Output        logger.FileConfig
	MetricsListen string
	APIListen     string
	HistoryDSNs   []string
}

// Config is a loaded configuration file. Entries keep file order.
type Config struct {
	Path    string
	Dir     string
	Global  Global
	Entries []supervisor.Entry
}

// LoggerConfig returns the logging setup described by the file.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Slog: c.Global.Log, File: c.Global.Output}
}

// Specs returns the process specs in configuration order.
func (c *Config) Specs() []*process.Spec {
	out := make([]*process.Spec, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Spec
	}
	return out
}

// fileConfig is the format-independent raw form of a config file. Durations
// stay strings so "5" (seconds) and "5s" are both accepted.
type fileConfig struct {
	PollInterval   string   `mapstructure:"poll_interval"`
	Restart        string   `mapstructure:"restart"`
	Backoff        string   `mapstructure:"backoff"`
	InitialBackoff string   `mapstructure:"initial_backoff"`
	MaxBackoff     string   `mapstructure:"max_backoff"`
	Multiplier     float64  `mapstructure:"multiplier"`
	MaxRetries     int      `mapstructure:"max_retries"`
	LogFile        *string  `mapstructure:"log_file"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`
	LogColor       bool     `mapstructure:"log_color"`
	LogMaxSizeMB   int      `mapstructure:"log_max_size_mb"`
	LogMaxBackups  int      `mapstructure:"log_max_backups"`
	LogMaxAgeDays  int      `mapstructure:"log_max_age_days"`
	LogCompress    bool     `mapstructure:"log_compress"`
	OutputDir      string   `mapstructure:"output_dir"`
	MetricsListen  string   `mapstructure:"metrics_listen"`
	APIListen      string   `mapstructure:"api_listen"`
	HistoryDSN     []string `mapstructure:"history_dsn"`

	Processes []procConfig `mapstructure:"processes"`
}

type procConfig struct {
	Name           string  `mapstructure:"name"`
	Path           string  `mapstructure:"path"`
	Args           any     `mapstructure:"args"` // "a b c" or ["a", "b", "c"]
	Kind           string  `mapstructure:"kind"`
	Restart        string  `mapstructure:"restart"`
	Backoff        string  `mapstructure:"backoff"`
	InitialBackoff string  `mapstructure:"initial_backoff"`
	MaxBackoff     string  `mapstructure:"max_backoff"`
	MaxRetries     *int    `mapstructure:"max_retries"`
	Multiplier     float64 `mapstructure:"multiplier"`
}

// Load reads path, choosing the parser by extension: .ini (and files without
// an extension) use the ini loader, .toml/.yaml/.yml/.json use viper.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnreadable, path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}

	var fc *fileConfig
	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".ini", ".cfg", ".conf", "":
		fc, err = readINI(abs)
	case ".toml", ".yaml", ".yml", ".json":
		fc, err = readViper(abs, strings.TrimPrefix(ext, "."))
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnreadable, path, err)
	}

	cfg, err := fc.build(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnreadable, path, err)
	}
	return cfg, nil
}

func (fc *fileConfig) build(abs string) (*Config, error) {
	dir := filepath.Dir(abs)
	cfg := &Config{Path: abs, Dir: dir}

	g, err := fc.global(dir)
	if err != nil {
		return nil, err
	}
	cfg.Global = g

	if len(fc.Processes) == 0 {
		return nil, errors.New("no process entries")
	}
	seen := make(map[string]int, len(fc.Processes))
	for i, pc := range fc.Processes {
		e, err := pc.entry(dir, g.Policy)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if j, dup := seen[e.Spec.Name]; dup {
			return nil, fmt.Errorf("entry %d: duplicate process name %q (first defined by entry %d)", i, e.Spec.Name, j)
		}
		seen[e.Spec.Name] = i
		cfg.Entries = append(cfg.Entries, e)
	}
	return cfg, nil
}

func (fc *fileConfig) global(dir string) (Global, error) {
	var g Global
	var err error
	if g.PollInterval, err = parseDuration("poll_interval", fc.PollInterval); err != nil {
		return g, err
	}
	if g.PollInterval == 0 {
		g.PollInterval = supervisor.DefaultPollInterval
	}

	p := supervisor.DefaultPolicy()
	if p.Restart, err = supervisor.ParseRestartMode(fc.Restart); err != nil {
		return g, err
	}
	if p.Backoff, err = supervisor.ParseBackoffMode(fc.Backoff); err != nil {
		return g, err
	}
	if d, err := parseDuration("initial_backoff", fc.InitialBackoff); err != nil {
		return g, err
	} else if d > 0 {
		p.InitialBackoff = d
	}
	if d, err := parseDuration("max_backoff", fc.MaxBackoff); err != nil {
		return g, err
	} else if d > 0 {
		p.MaxBackoff = d
	}
	if fc.Multiplier != 0 {
		p.Multiplier = fc.Multiplier
	}
	p.MaxRetries = fc.MaxRetries
	if err := p.Validate(); err != nil {
		return g, err
	}
	g.Policy = p

	if _, err := logger.ParseLevel(fc.LogLevel); err != nil {
		return g, err
	}
	logPath := filepath.Join(dir, DefaultLogFile)
	if fc.LogFile != nil {
		switch lf := strings.TrimSpace(*fc.LogFile); lf {
		case "", "-", "stderr":
			logPath = ""
		default:
			logPath = resolve(dir, lf)
		}
	}
	g.Log = logger.SlogConfig{
		Level:      fc.LogLevel,
		Format:     fc.LogFormat,
		Color:      fc.LogColor,
		TimeStamps: true,
		Path:       logPath,
		MaxSizeMB:  fc.LogMaxSizeMB,
		MaxBackups: fc.LogMaxBackups,
		MaxAgeDays: fc.LogMaxAgeDays,
		Compress:   fc.LogCompress,
	}
	if od := strings.TrimSpace(fc.OutputDir); od != "" {
		g.Output = logger.FileConfig{
			Dir:        resolve(dir, od),
			MaxSizeMB:  fc.LogMaxSizeMB,
			MaxBackups: fc.LogMaxBackups,
			MaxAgeDays: fc.LogMaxAgeDays,
			Compress:   fc.LogCompress,
		}
	}

	g.MetricsListen = strings.TrimSpace(fc.MetricsListen)
	g.APIListen = strings.TrimSpace(fc.APIListen)
	for _, d := range fc.HistoryDSN {
		for _, part := range strings.Split(d, ",") {
			if part = strings.TrimSpace(part); part != "" {
				g.HistoryDSNs = append(g.HistoryDSNs, resolveDSN(dir, part))
			}
		}
	}
	return g, nil
}

func (pc procConfig) entry(dir string, base supervisor.Policy) (supervisor.Entry, error) {
	path := strings.TrimSpace(pc.Path)
	name := strings.TrimSpace(pc.Name)
	if path == "" {
		if name == "" {
			return supervisor.Entry{}, errors.New("path is required")
		}
		return supervisor.Entry{}, fmt.Errorf("process %q: path is required", name)
	}
	if name == "" {
		name = process.DefaultName(path)
	}
	args, err := argList(pc.Args)
	if err != nil {
		return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
	}
	kind, err := process.ParseKind(pc.Kind)
	if err != nil {
		return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
	}
	spec := &process.Spec{Name: name, Path: resolve(dir, path), Args: args, Kind: kind}
	if err := spec.Validate(); err != nil {
		return supervisor.Entry{}, err
	}

	p := base
	switch {
	case pc.Restart != "":
		if p.Restart, err = supervisor.ParseRestartMode(pc.Restart); err != nil {
			return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
		}
	case kind == process.KindOpen:
		// Platform openers return as soon as the document is handed off.
		p.Restart = supervisor.RestartOnFailure
	}
	if pc.Backoff != "" {
		if p.Backoff, err = supervisor.ParseBackoffMode(pc.Backoff); err != nil {
			return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
		}
	}
	if d, err := parseDuration("initial_backoff", pc.InitialBackoff); err != nil {
		return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
	} else if d > 0 {
		p.InitialBackoff = d
	}
	if d, err := parseDuration("max_backoff", pc.MaxBackoff); err != nil {
		return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
	} else if d > 0 {
		p.MaxBackoff = d
	}
	if pc.Multiplier != 0 {
		p.Multiplier = pc.Multiplier
	}
	if pc.MaxRetries != nil {
		p.MaxRetries = *pc.MaxRetries
	}
	if err := p.Validate(); err != nil {
		return supervisor.Entry{}, fmt.Errorf("process %q: %w", name, err)
	}
	return supervisor.Entry{Spec: spec, Policy: p}, nil
}

// argList accepts the space-delimited string form or an explicit list.
func argList(v any) ([]string, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case string:
		return process.ParseArgs(a), nil
	case []string:
		if len(a) == 0 {
			return nil, nil
		}
		return append([]string(nil), a...), nil
	case []any:
		if len(a) == 0 {
			return nil, nil
		}
		out := make([]string, len(a))
		for i, x := range a {
			out[i] = fmt.Sprint(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("args must be a string or a list, got %T", v)
	}
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(key, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// resolveDSN anchors a relative SQLite file DSN (bare path or sqlite://)
// to the config directory. Other schemes, :memory: and file: URIs are
// returned unchanged.
func resolveDSN(dir, dsn string) string {
	scheme, rest := "", dsn
	if i := strings.Index(dsn, "://"); i >= 0 {
		if !strings.EqualFold(dsn[:i], "sqlite") {
			return dsn
		}
		scheme, rest = dsn[:i+3], dsn[i+3:]
	}
	p, query, hasQuery := strings.Cut(rest, "?")
	if p == "" || strings.HasPrefix(p, ":memory:") || strings.HasPrefix(p, "file:") || filepath.IsAbs(p) {
		return dsn
	}
	out := scheme + filepath.Join(dir, p)
	if hasQuery {
		out += "?" + query
	}
	return out
}

// resolve makes p absolute relative to the config directory.
func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
