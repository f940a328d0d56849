package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loykin/watchdog/internal/history"
	"github.com/loykin/watchdog/internal/metrics"
	"github.com/loykin/watchdog/internal/process"
)

var (
	ErrNoSpecs        = errors.New("no processes configured")
	ErrAlreadyRunning = errors.New("supervisor is already running")
)

// Entry pairs a process spec with its restart policy. Zero policy fields
// take the defaults.
type Entry struct {
	Spec   *process.Spec
	Policy Policy
}

type Options struct {
	Logger       *slog.Logger
	Launcher     process.Launcher // defaults to an ExecLauncher on Logger
	PollInterval time.Duration    // defaults to DefaultPollInterval
	History      history.Recorder // optional
}

// Supervisor keeps a fixed, ordered set of processes alive. A single
// goroutine (Run) owns every slot: it launches all entries in order, then
// repeatedly sleeps for the poll interval and relaunches whatever has
// terminated, again in configuration order.
//
// Children are not signalled when Run returns; they keep running
// unsupervised.
type Supervisor struct {
	log      *slog.Logger
	launcher process.Launcher
	interval time.Duration
	history  history.Recorder
	now      func() time.Time

	slots   []*slot
	running atomic.Bool
	snap    atomic.Pointer[[]SlotStatus]
}

func New(entries []Entry, opts Options) (*Supervisor, error) {
	if len(entries) == 0 {
		return nil, ErrNoSpecs
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		log:      log,
		launcher: opts.Launcher,
		interval: opts.PollInterval,
		history:  opts.History,
		now:      time.Now,
	}
	if s.launcher == nil {
		s.launcher = process.NewExecLauncher(log)
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}

	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Spec == nil {
			return nil, fmt.Errorf("entry %d: missing spec", i)
		}
		if err := e.Spec.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if err := e.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("process %q: %w", e.Spec.Name, err)
		}
		if j, dup := seen[e.Spec.Name]; dup {
			return nil, fmt.Errorf("process %q: duplicate name (entries %d and %d)", e.Spec.Name, j, i)
		}
		seen[e.Spec.Name] = i
		s.slots = append(s.slots, newSlot(i, e))
	}
	s.publish()
	return s, nil
}

// Run launches every entry and supervises them until ctx is cancelled. It
// returns ctx's error; a Supervisor runs at most once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.log.Info("supervisor started", "processes", len(s.slots), "poll_interval", s.interval.String())
	s.startAll(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("supervisor stopped", "reason", context.Cause(ctx))
			return ctx.Err()
		case <-timer.C:
		}
		s.poll(ctx)
		timer.Reset(s.interval)
	}
}

// startAll makes the initial launch attempt for every slot, in order. A
// failure leaves the slot empty for the next cycle.
func (s *Supervisor) startAll(ctx context.Context) {
	for _, sl := range s.slots {
		if ctx.Err() != nil {
			break
		}
		s.launch(ctx, sl)
	}
	started := 0
	for _, sl := range s.slots {
		if sl.state == SlotRunning {
			started++
		}
	}
	if started == 0 {
		s.log.Error("no processes were successfully started", "processes", len(s.slots))
	}
	s.publish()
}

// poll is one check-and-relaunch cycle over all slots in index order.
func (s *Supervisor) poll(ctx context.Context) {
	began := time.Now()
	for _, sl := range s.slots {
		if ctx.Err() != nil {
			return
		}
		s.check(ctx, sl)
	}
	s.publish()
	metrics.ObservePollDuration(time.Since(began).Seconds())
}

func (s *Supervisor) check(ctx context.Context, sl *slot) {
	if sl.state.Final() {
		return
	}
	exitedNow := false
	if sl.handle != nil {
		state, code := sl.handle.Poll()
		if state == process.StateRunning {
			sl.consecutive = 0
			sl.bo.Reset()
			return
		}
		s.onExit(sl, code)
		if sl.state.Final() {
			return
		}
		exitedNow = true
	}
	if s.now().Before(sl.nextAttempt) {
		return
	}
	s.relaunch(ctx, sl, !exitedNow && sl.state == SlotFailedToStart)
}

// onExit records a termination observed by poll and schedules the relaunch
// the policy allows.
func (s *Supervisor) onExit(sl *slot, code int) {
	sl.lastPID = sl.handle.PID()
	sl.handle = nil
	sl.lastExit = &code
	sl.lastErr = nil
	sl.state = SlotExited

	s.log.Warn("process exited", "name", sl.spec.Name, "exit_code", code)
	metrics.IncExit(sl.spec.Name, code)
	s.record(history.EventExit, sl, sl.lastPID, &code, nil)

	if !sl.policy.restartAfter(code) {
		sl.state = SlotCompleted
		s.log.Info("process will not be restarted", "name", sl.spec.Name, "exit_code", code, "restart", string(sl.policy.Restart))
		s.record(history.EventCompleted, sl, sl.lastPID, &code, nil)
		return
	}
	s.schedule(sl)
}

// schedule sets the earliest time of the next attempt from the slot's
// backoff.
func (s *Supervisor) schedule(sl *slot) {
	d := sl.bo.NextBackOff()
	if d == 0 {
		sl.nextAttempt = time.Time{}
		return
	}
	sl.nextAttempt = s.now().Add(d)
	s.log.Info("restart delayed", "name", sl.spec.Name, "delay", d.String())
}

// relaunch starts the next attempt unless the retry limit is reached. A
// retry of an empty slot is logged as a warning; a relaunch after an exit
// was already reported by onExit.
func (s *Supervisor) relaunch(ctx context.Context, sl *slot, retry bool) {
	if limit := sl.policy.MaxRetries; limit > 0 && sl.consecutive >= limit {
		sl.state = SlotGaveUp
		args := []any{"name", sl.spec.Name, "retries", sl.consecutive}
		if sl.lastErr != nil {
			args = append(args, "error", sl.lastErr)
		} else if sl.lastExit != nil {
			args = append(args, "exit_code", *sl.lastExit)
		}
		s.log.Error("giving up on process", args...)
		metrics.IncGaveUp(sl.spec.Name)
		s.record(history.EventGaveUp, sl, sl.lastPID, sl.lastExit, sl.lastErr)
		return
	}
	sl.consecutive++
	sl.restarts++
	if retry {
		s.log.Warn("retrying failed start", "name", sl.spec.Name, "attempt", sl.consecutive)
	}
	metrics.IncRestart(sl.spec.Name)
	s.launch(ctx, sl)
}

// launch asks the launcher for a new instance of the slot's spec. The same
// *Spec is passed on every attempt.
func (s *Supervisor) launch(ctx context.Context, sl *slot) {
	h, err := s.launcher.Start(ctx, sl.spec)
	if err != nil {
		sl.handle = nil
		sl.lastErr = err
		sl.state = SlotFailedToStart
		reason := "launch_failed"
		if errors.Is(err, process.ErrNotFound) {
			reason = "not_found"
		}
		metrics.IncStartFailure(sl.spec.Name, reason)
		s.record(history.EventStartFailed, sl, 0, nil, err)
		s.schedule(sl)
		return
	}
	sl.handle = h
	sl.lastErr = nil
	sl.state = SlotRunning
	sl.nextAttempt = time.Time{}
	sl.starts++
	metrics.IncStart(sl.spec.Name)
	s.record(history.EventStart, sl, h.PID(), nil, nil)
}

func (s *Supervisor) record(t history.EventType, sl *slot, pid int, code *int, err error) {
	if s.history == nil {
		return
	}
	rec := history.Record{
		Slot:     sl.index,
		Name:     sl.spec.Name,
		Path:     sl.spec.Path,
		Args:     sl.spec.Args,
		PID:      pid,
		Restarts: sl.restarts,
	}
	if code != nil {
		c := *code
		rec.ExitCode = &c
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.history.Record(history.Event{Type: t, OccurredAt: s.now().UTC(), Record: rec})
}

func (s *Supervisor) publish() {
	out := make([]SlotStatus, len(s.slots))
	states := make([]string, len(AllSlotStates))
	for i, st := range AllSlotStates {
		states[i] = string(st)
	}
	for i, sl := range s.slots {
		out[i] = sl.status()
		metrics.SetState(sl.spec.Name, string(sl.state), states)
	}
	s.snap.Store(&out)
}

// Snapshot returns the statuses published at the end of the last cycle, in
// configuration order. Safe for concurrent use.
func (s *Supervisor) Snapshot() []SlotStatus {
	p := s.snap.Load()
	if p == nil {
		return nil
	}
	return append([]SlotStatus(nil), (*p)...)
}

// Lookup returns the published status of the named slot.
func (s *Supervisor) Lookup(name string) (SlotStatus, bool) {
	p := s.snap.Load()
	if p == nil {
		return SlotStatus{}, false
	}
	for _, st := range *p {
		if st.Name == name {
			return st, true
		}
	}
	return SlotStatus{}, false
}

// RunningPIDs maps the name of every running slot to its pid.
func (s *Supervisor) RunningPIDs() map[string]int {
	out := make(map[string]int)
	for _, st := range s.Snapshot() {
		if st.State == SlotRunning && st.PID > 0 {
			out[st.Name] = st.PID
		}
	}
	return out
}

// Len returns the number of slots.
func (s *Supervisor) Len() int { return len(s.slots) }
