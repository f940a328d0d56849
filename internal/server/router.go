package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/watchdog/internal/process"
	"github.com/loykin/watchdog/internal/supervisor"
)

// StatusSource is what the router reads from. *supervisor.Supervisor
// satisfies it.
type StatusSource interface {
	Snapshot() []supervisor.SlotStatus
	Lookup(name string) (supervisor.SlotStatus, bool)
}

// Router provides read-only, embeddable HTTP handlers over the supervised
// set. Endpoints:
//
//	GET {basePath}/status          all slots in configuration order; ?state= filters
//	GET {basePath}/status/:name    one slot, 404 if unknown
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusSource
	basePath string
	sample   func(pid int) (process.Usage, error)
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/status and /api/status/:name.
func NewRouter(src StatusSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath), sample: process.SampleUsage}
}

// BasePath returns the sanitized prefix all routes live under.
func (r *Router) BasePath() string { return r.basePath }

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleList)
	group.GET("/status/:name", r.handleOne)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Listen errors are reported before returning; serve errors after that are
// logged.
func NewServer(addr, basePath string, src StatusSource, log *slog.Logger) (*http.Server, error) {
	if log == nil {
		log = slog.Default()
	}
	r := NewRouter(src, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server stopped", "addr", addr, "error", err)
		}
	}()
	return server, nil
}

// Shutdown stops srv, waiting at most timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

// statusResp adds a live resource sample to a slot snapshot.
type statusResp struct {
	supervisor.SlotStatus
	Usage *process.Usage `json:"usage,omitempty"`
}

func (r *Router) handleList(c *gin.Context) {
	var want supervisor.SlotState
	if s := c.Query("state"); s != "" {
		want = supervisor.SlotState(s)
		if !slices.Contains(supervisor.AllSlotStates, want) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown state " + s})
			return
		}
	}
	sts := r.src.Snapshot()
	out := make([]statusResp, 0, len(sts))
	for _, st := range sts {
		if want != "" && st.State != want {
			continue
		}
		out = append(out, r.withUsage(st))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleOne(c *gin.Context) {
	name := c.Param("name")
	st, ok := r.src.Lookup(name)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "unknown process " + name})
		return
	}
	writeJSON(c, http.StatusOK, r.withUsage(st))
}

func (r *Router) withUsage(st supervisor.SlotStatus) statusResp {
	resp := statusResp{SlotStatus: st}
	if st.State != supervisor.SlotRunning || st.PID <= 0 || r.sample == nil {
		return resp
	}
	// The process may have exited since the snapshot; omit usage then.
	if u, err := r.sample(st.PID); err == nil {
		resp.Usage = &u
	}
	return resp
}
