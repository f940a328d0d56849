package supervisor

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestParseRestartMode(t *testing.T) {
	cases := map[string]RestartMode{
		"":           RestartAlways,
		"always":     RestartAlways,
		"On-Failure": RestartOnFailure,
		"on_failure": RestartOnFailure,
		" never ":    RestartNever,
	}
	for in, want := range cases {
		got, err := ParseRestartMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseRestartMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRestartMode("sometimes"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestParseBackoffMode(t *testing.T) {
	if m, err := ParseBackoffMode(""); err != nil || m != BackoffImmediate {
		t.Fatalf("empty: %q %v", m, err)
	}
	if m, err := ParseBackoffMode("Exponential"); err != nil || m != BackoffExponential {
		t.Fatalf("exponential: %q %v", m, err)
	}
	if _, err := ParseBackoffMode("linear"); err == nil {
		t.Fatal("expected error for linear")
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := (Policy{}).Validate(); err != nil {
		t.Fatalf("zero policy should be valid: %v", err)
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy should be valid: %v", err)
	}
	bad := []Policy{
		{Restart: "sometimes"},
		{Backoff: "linear"},
		{MaxRetries: -1},
		{Multiplier: 0.5},
		{InitialBackoff: time.Minute, MaxBackoff: time.Second},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, p)
		}
	}
}

func TestRestartAfter(t *testing.T) {
	cases := []struct {
		mode RestartMode
		code int
		want bool
	}{
		{RestartAlways, 0, true},
		{RestartAlways, 1, true},
		{RestartOnFailure, 0, false},
		{RestartOnFailure, 2, true},
		{RestartOnFailure, -1, true},
		{RestartNever, 1, false},
	}
	for _, c := range cases {
		p := Policy{Restart: c.mode}.withDefaults()
		if got := p.restartAfter(c.code); got != c.want {
			t.Fatalf("%s exit %d: got %v want %v", c.mode, c.code, got, c.want)
		}
	}
}

func TestNewBackOffImmediate(t *testing.T) {
	b := DefaultPolicy().newBackOff()
	for range 5 {
		if d := b.NextBackOff(); d != 0 {
			t.Fatalf("immediate backoff returned %s", d)
		}
	}
}

func TestNewBackOffExponentialIsDeterministicAndCapped(t *testing.T) {
	p := Policy{Backoff: BackoffExponential, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}.withDefaults()
	b := p.newBackOff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		d := b.NextBackOff()
		if d == backoff.Stop {
			t.Fatalf("step %d: backoff stopped", i)
		}
		if d != w {
			t.Fatalf("step %d: got %s want %s", i, d, w)
		}
	}
	b.Reset()
	if d := b.NextBackOff(); d != time.Second {
		t.Fatalf("after reset: got %s", d)
	}
}

func TestWithDefaultsCanonicalisesModes(t *testing.T) {
	for _, in := range []RestartMode{"on_failure", "On-Failure", "ONFAILURE"} {
		p := Policy{Restart: in}.withDefaults()
		if p.Restart != RestartOnFailure {
			t.Fatalf("%q: restart = %q", in, p.Restart)
		}
		if p.restartAfter(0) {
			t.Fatalf("%q: clean exit should not restart", in)
		}
	}
	if p := (Policy{Restart: "NEVER"}).withDefaults(); p.restartAfter(1) {
		t.Fatal("NEVER should not restart")
	}
	p := Policy{Backoff: "Exponential", InitialBackoff: time.Second}.withDefaults()
	if p.Backoff != BackoffExponential {
		t.Fatalf("backoff = %q", p.Backoff)
	}
	if d := p.newBackOff().NextBackOff(); d != time.Second {
		t.Fatalf("first delay = %s, want 1s", d)
	}
}
