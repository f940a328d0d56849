package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/watchdog/internal/process"
)

// UsageSampler periodically exports CPU and memory of running instances.
// The source returns name -> pid for every slot that currently has a live
// process.
type UsageSampler struct {
	log      *slog.Logger
	interval time.Duration
	source   func() map[string]int
	sample   func(pid int) (process.Usage, error)

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewUsageSampler(log *slog.Logger, interval time.Duration, source func() map[string]int) *UsageSampler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &UsageSampler{
		log:      log,
		interval: interval,
		source:   source,
		sample:   process.SampleUsage,
		seen:     make(map[string]struct{}),
	}
}

// Run samples until ctx is cancelled.
func (u *UsageSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.collect()
		}
	}
}

func (u *UsageSampler) collect() {
	live := u.source()

	u.mu.Lock()
	defer u.mu.Unlock()
	for name := range u.seen {
		if _, ok := live[name]; !ok {
			ClearUsage(name)
			delete(u.seen, name)
		}
	}
	for name, pid := range live {
		us, err := u.sample(pid)
		if err != nil {
			u.log.Debug("usage sample failed", "name", name, "pid", pid, "error", err)
			ClearUsage(name)
			delete(u.seen, name)
			continue
		}
		SetUsage(name, us.CPUPercent, us.RSSBytes)
		u.seen[name] = struct{}{}
	}
}
