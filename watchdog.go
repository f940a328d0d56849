package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/watchdog/internal/config"
	"github.com/loykin/watchdog/internal/history"
	"github.com/loykin/watchdog/internal/history/factory"
	"github.com/loykin/watchdog/internal/metrics"
	"github.com/loykin/watchdog/internal/process"
	iapi "github.com/loykin/watchdog/internal/server"
	"github.com/loykin/watchdog/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type (
	Spec        = process.Spec
	Kind        = process.Kind
	Launcher    = process.Launcher
	Policy      = supervisor.Policy
	Entry       = supervisor.Entry
	Status      = supervisor.SlotStatus
	Config      = config.Config
	HistorySink = history.Sink
)

var (
	ErrConfigUnreadable = config.ErrConfigUnreadable
	ErrNotFound         = process.ErrNotFound
	ErrLaunchFailed     = process.ErrLaunchFailed
	ErrNoSpecs          = supervisor.ErrNoSpecs
)

const shutdownTimeout = 5 * time.Second

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Option customizes a Watchdog built by New.
type Option func(*Watchdog)

// WithLogger replaces the logger described by the configuration.
func WithLogger(l *slog.Logger) Option { return func(w *Watchdog) { w.log = l } }

// WithLauncher replaces the default ExecLauncher.
func WithLauncher(l Launcher) Option { return func(w *Watchdog) { w.launcher = l } }

// WithHistorySinks adds sinks next to the ones named by history_dsn.
func WithHistorySinks(s ...HistorySink) Option {
	return func(w *Watchdog) { w.extraSinks = append(w.extraSinks, s...) }
}

// WithRegisterer selects where metrics are registered when metrics_listen
// is set. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option { return func(w *Watchdog) { w.reg = r } }

// Watchdog is a configured supervisor together with the optional metrics
// endpoint, status API and history export around it.
type Watchdog struct {
	cfg        *Config
	log        *slog.Logger
	launcher   Launcher
	reg        prometheus.Registerer
	extraSinks []history.Sink

	sup     *supervisor.Supervisor
	hist    *history.Dispatcher
	closers []io.Closer
	once    sync.Once
}

func New(cfg *Config, opts ...Option) (*Watchdog, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	w := &Watchdog{cfg: cfg, reg: prometheus.DefaultRegisterer}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		log, c, err := cfg.LoggerConfig().NewSlogger()
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		w.log = log
		w.closers = append(w.closers, c)
	}
	if w.launcher == nil {
		w.launcher = process.NewExecLauncher(w.log, process.WithOutputFiles(cfg.Global.Output))
	}

	sinks, err := factory.NewSinks(cfg.Global.HistoryDSNs)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("history: %w", err)
	}
	sinks = append(sinks, w.extraSinks...)
	var rec history.Recorder
	if len(sinks) > 0 {
		w.hist = history.NewDispatcher(w.log, history.DefaultBufferSize, sinks...)
		rec = w.hist
	}

	w.sup, err = supervisor.New(cfg.Entries, supervisor.Options{
		Logger:       w.log,
		Launcher:     w.launcher,
		PollInterval: cfg.Global.PollInterval,
		History:      rec,
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// Run starts the configured endpoints and supervises until ctx is
// cancelled. Everything New opened is closed on return.
func (w *Watchdog) Run(ctx context.Context) error {
	defer func() { _ = w.Close() }()
	g := w.cfg.Global
	w.log.Info("configuration loaded", "path", w.cfg.Path, "processes", len(w.cfg.Entries))

	var servers []*http.Server
	defer func() {
		for _, s := range servers {
			_ = iapi.Shutdown(s, shutdownTimeout)
		}
	}()
	if g.MetricsListen != "" {
		if err := metrics.Register(w.reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		h := metrics.Handler()
		if gt, ok := w.reg.(prometheus.Gatherer); ok {
			h = metrics.HandlerFor(gt)
		}
		srv, err := newMetricsServer(g.MetricsListen, h, w.log)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		servers = append(servers, srv)
		w.log.Info("metrics endpoint listening", "addr", g.MetricsListen)
		go metrics.NewUsageSampler(w.log, g.PollInterval, w.sup.RunningPIDs).Run(ctx)
	}
	if g.APIListen != "" {
		srv, err := iapi.NewServer(g.APIListen, "", w.sup, w.log)
		if err != nil {
			return fmt.Errorf("status api listener: %w", err)
		}
		servers = append(servers, srv)
		w.log.Info("status api listening", "addr", g.APIListen)
	}
	return w.sup.Run(ctx)
}

// Close flushes history and releases the log file. Run calls it; callers
// that never run the Watchdog must call it themselves.
func (w *Watchdog) Close() error {
	var err error
	w.once.Do(func() {
		if w.hist != nil {
			err = w.hist.Close()
		}
		for _, c := range w.closers {
			err = errors.Join(err, c.Close())
		}
	})
	return err
}

func (w *Watchdog) Logger() *slog.Logger { return w.log }

// Snapshot returns the statuses published after the last poll cycle.
func (w *Watchdog) Snapshot() []Status { return w.sup.Snapshot() }

// Lookup returns the published status of one process.
func (w *Watchdog) Lookup(name string) (Status, bool) { return w.sup.Lookup(name) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewStatusHandler returns the read-only status router for embedding, e.g.
// under an existing mux.
func NewStatusHandler(w *Watchdog, basePath string) http.Handler {
	return iapi.NewRouter(w.sup, basePath).Handler()
}

func newMetricsServer(addr string, h http.Handler, log *slog.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv, nil
}
