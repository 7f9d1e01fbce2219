package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue. A disabled config yields a nil
// Dispatcher, whose methods are all no-ops.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays events to one sink from a single goroutine. Emit never
// reports failure; a panicking sink loses only the event it was handed.
type Dispatcher struct {
	sink     Sink
	log      *slog.Logger
	queue    chan Event
	stop     chan struct{}
	stopped  sync.WaitGroup
	lossy    bool
	capacity int

	dropped  atomic.Uint64
	failed   atomic.Uint64
	closing  atomic.Bool
	stopOnce sync.Once
}

func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	capacity := max(cfg.BufferSize, 1)
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:     sink,
		log:      logger.With("component", "audit"),
		queue:    make(chan Event, capacity),
		stop:     make(chan struct{}),
		lossy:    cfg.DropIfFull,
		capacity: capacity,
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued once Close has been called.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("audit sink panicked", "event_type", ev.EventType, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit enqueues ev. A lossy dispatcher drops on a full queue and logs the
// first drop only; otherwise Emit waits for room, ctx or Close.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.lossy {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			if d.dropped.Add(1) == 1 {
				d.log.Warn("audit buffer full, dropping events", "buffer_size", d.capacity)
			}
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- ev:
	case <-cancelled:
	case <-d.stop:
	}
}

// Close stops intake, flushes the queue and waits for the relay goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events lost to panicking sinks.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
