package supervisor

import (
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loykin/watchdog/internal/process"
)

// SlotState is the supervisor's view of one configured entry.
type SlotState string

const (
	SlotPending       SlotState = "pending" // Run has not launched it yet
	SlotRunning       SlotState = "running"
	SlotExited        SlotState = "exited" // terminated, relaunch scheduled
	SlotFailedToStart SlotState = "failed_to_start"
	SlotCompleted     SlotState = "completed" // exited and the policy says stay down
	SlotGaveUp        SlotState = "gave_up"   // exceeded max retries
)

// AllSlotStates lists every state, e.g. for exporting one gauge per state.
var AllSlotStates = []SlotState{SlotPending, SlotRunning, SlotExited, SlotFailedToStart, SlotCompleted, SlotGaveUp}

func (s SlotState) Final() bool { return s == SlotCompleted || s == SlotGaveUp }

// SlotStatus is a read-only copy of a slot published after every cycle.
type SlotStatus struct {
	Index        int         `json:"index"`
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	Args         []string    `json:"args,omitempty"`
	Kind         string      `json:"kind"`
	Restart      RestartMode `json:"restart"`
	State        SlotState   `json:"state"`
	PID          int         `json:"pid,omitempty"`
	StartedAt    time.Time   `json:"started_at,omitzero"`
	LastExitCode *int        `json:"last_exit_code,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	Starts       int         `json:"starts"`
	Restarts     int         `json:"restarts"`
	Consecutive  int         `json:"consecutive_retries"`
	NextAttempt  time.Time   `json:"next_attempt,omitzero"`
}

// slot is one position in the supervised set. Only the Run goroutine
// touches it.
type slot struct {
	index  int
	spec   *process.Spec
	policy Policy
	bo     backoff.BackOff

	state  SlotState
	handle *process.Handle

	lastPID     int
	lastExit    *int
	lastErr     error
	starts      int
	restarts    int
	consecutive int
	nextAttempt time.Time
}

func newSlot(index int, e Entry) *slot {
	p := e.Policy.withDefaults()
	return &slot{
		index:  index,
		spec:   e.Spec,
		policy: p,
		bo:     p.newBackOff(),
		state:  SlotPending,
	}
}

func (sl *slot) status() SlotStatus {
	st := SlotStatus{
		Index:       sl.index,
		Name:        sl.spec.Name,
		Path:        sl.spec.Path,
		Args:        slices.Clone(sl.spec.Args),
		Kind:        string(sl.spec.Kind),
		Restart:     sl.policy.Restart,
		State:       sl.state,
		Starts:      sl.starts,
		Restarts:    sl.restarts,
		Consecutive: sl.consecutive,
	}
	if st.Kind == "" {
		st.Kind = string(process.KindAuto)
	}
	if sl.handle != nil {
		st.PID = sl.handle.PID()
		st.StartedAt = sl.handle.StartedAt()
	}
	if sl.lastExit != nil {
		c := *sl.lastExit
		st.LastExitCode = &c
	}
	if sl.lastErr != nil {
		st.LastError = sl.lastErr.Error()
	}
	if sl.handle == nil && !sl.state.Final() {
		st.NextAttempt = sl.nextAttempt
	}
	return st
}
