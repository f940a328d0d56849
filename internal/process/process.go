package process

import (
	"sync"
	"time"
)

// Handle is the bookkeeping record for one launched process instance. It is
// created by a Launcher and never reused: a restart produces a new Handle.
//
// The exit status is written once by the waiter goroutine before done is
// closed; readers observe it only after done is closed.
type Handle struct {
	spec      *Spec
	pid       int
	startedAt time.Time

	done     chan struct{}
	once     sync.Once
	exitCode int
	exitErr  error
	exitedAt time.Time
}

// NewHandle returns a running handle for spec and the function its owner
// calls exactly once when the process terminates. Later calls are ignored.
func NewHandle(spec *Spec, pid int) (*Handle, func(code int, err error)) {
	h := &Handle{spec: spec, pid: pid, startedAt: time.Now(), done: make(chan struct{})}
	return h, h.markExited
}

func (h *Handle) markExited(code int, err error) {
	h.once.Do(func() {
		h.exitCode = code
		h.exitErr = err
		h.exitedAt = time.Now()
		close(h.done)
	})
}

// Spec returns the Spec this instance was launched from.
func (h *Handle) Spec() *Spec { return h.spec }

func (h *Handle) PID() int { return h.pid }

func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed when the process has terminated.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Poll reports the current state without blocking. The exit code is only
// meaningful when the state is StateExited; -1 means the process was killed
// by a signal or its status could not be determined.
func (h *Handle) Poll() (State, int) {
	select {
	case <-h.done:
		return StateExited, h.exitCode
	default:
		return StateRunning, 0
	}
}

// ExitErr returns the error reported by the wait, if any, once exited.
func (h *Handle) ExitErr() error {
	select {
	case <-h.done:
		return h.exitErr
	default:
		return nil
	}
}

// ExitedAt returns the time termination was observed, or zero while running.
func (h *Handle) ExitedAt() time.Time {
	select {
	case <-h.done:
		return h.exitedAt
	default:
		return time.Time{}
	}
}
