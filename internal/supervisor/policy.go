package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RestartMode decides whether a terminated process is launched again.
type RestartMode string

const (
	RestartAlways    RestartMode = "always"     // relaunch after every exit
	RestartOnFailure RestartMode = "on-failure" // relaunch only after a non-zero exit
	RestartNever     RestartMode = "never"      // launch once
)

// BackoffMode decides how long an eligible relaunch waits.
type BackoffMode string

const (
	BackoffImmediate   BackoffMode = "immediate"
	BackoffExponential BackoffMode = "exponential"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute
	DefaultMultiplier     = 2.0
)

func ParseRestartMode(s string) (RestartMode, error) {
	switch m := RestartMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return RestartAlways, nil
	case RestartAlways, RestartOnFailure, RestartNever:
		return m, nil
	case "on_failure", "onfailure":
		return RestartOnFailure, nil
	default:
		return "", fmt.Errorf("unknown restart mode %q, must be one of: always, on-failure, never", s)
	}
}

func ParseBackoffMode(s string) (BackoffMode, error) {
	switch m := BackoffMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BackoffImmediate, nil
	case BackoffImmediate, BackoffExponential:
		return m, nil
	default:
		return "", fmt.Errorf("unknown backoff %q, must be one of: immediate, exponential", s)
	}
}

// Policy is the restart behaviour of one slot.
type Policy struct {
	Restart        RestartMode
	Backoff        BackoffMode
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// MaxRetries caps consecutive relaunch attempts that never reach a poll
	// in the running state. Zero means unlimited.
	MaxRetries int
}

// DefaultPolicy restarts every exit on the next poll with no delay and no
// retry limit.
func DefaultPolicy() Policy {
	return Policy{
		Restart:        RestartAlways,
		Backoff:        BackoffImmediate,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
	}
}

// withDefaults fills zero fields from DefaultPolicy and canonicalises the
// mode spellings accepted by ParseRestartMode and ParseBackoffMode.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if m, err := ParseRestartMode(string(p.Restart)); err == nil {
		p.Restart = m
	} else {
		p.Restart = d.Restart
	}
	if m, err := ParseBackoffMode(string(p.Backoff)); err == nil {
		p.Backoff = m
	} else {
		p.Backoff = d.Backoff
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	return p
}

func (p Policy) Validate() error {
	if _, err := ParseRestartMode(string(p.Restart)); err != nil {
		return err
	}
	if _, err := ParseBackoffMode(string(p.Backoff)); err != nil {
		return err
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %g", p.Multiplier)
	}
	if p.InitialBackoff > 0 && p.MaxBackoff > 0 && p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max_backoff (%s) is shorter than initial_backoff (%s)", p.MaxBackoff, p.InitialBackoff)
	}
	return nil
}

// restartAfter reports whether an exit with code leads to a relaunch.
func (p Policy) restartAfter(code int) bool {
	switch p.Restart {
	case RestartNever:
		return false
	case RestartOnFailure:
		return code != 0
	default:
		return true
	}
}

// newBackOff returns the delay source for one slot. Immediate never waits;
// exponential grows deterministically up to MaxBackoff and never stops.
func (p Policy) newBackOff() backoff.BackOff {
	if p.Backoff != BackoffExponential {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
