package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultBufferSize  = 256
	DefaultSendTimeout = 5 * time.Second
)

// Dispatcher fans events out to sinks on its own goroutine so a slow or
// unreachable sink never stalls the caller. Events that arrive while the
// buffer is full are dropped.
type Dispatcher struct {
	log     *slog.Logger
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

func NewDispatcher(log *slog.Logger, bufSize int, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	d := &Dispatcher{
		log:     log,
		sinks:   append([]Sink(nil), sinks...),
		timeout: DefaultSendTimeout,
		ch:      make(chan Event, bufSize),
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Record queues e for delivery. It never blocks.
func (d *Dispatcher) Record(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- e:
	default:
		d.log.Debug("history event dropped", "type", string(e.Type), "name", e.Record.Name)
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for e := range d.ch {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := s.Send(ctx, e); err != nil {
				d.log.Warn("history sink send failed", "type", string(e.Type), "name", e.Record.Name, "error", err)
			}
			cancel()
		}
	}
}

// Close stops accepting events, delivers what is queued and closes every
// sink that implements io.Closer.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done

	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
