package events

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Publisher is the fan-out sink. Implemented by ws.Hub.
type Publisher interface {
	Publish(channel, event string, payload any)
}

type envelope struct {
	channel string
	event   string
	payload any
}

// Dispatcher decouples committed writes from delivery: Publish never blocks
// the caller, and a full queue drops the event rather than stalling a bid.
type Dispatcher struct {
	queue   chan envelope
	sink    Publisher
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewDispatcher creates a Dispatcher with the given queue capacity.
func NewDispatcher(sink Publisher, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:  make(chan envelope, queueSize),
		sink:   sink,
		logger: logger,
	}
}

// Publish enqueues an event. Safe for concurrent use.
func (d *Dispatcher) Publish(channel, event string, payload any) {
	select {
	case d.queue <- envelope{channel: channel, event: event, payload: payload}:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event", "event", event, "channel", channel, "dropped_total", n)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case env := <-d.queue:
			d.deliver(env)
		case <-ctx.Done():
			for {
				select {
				case env := <-d.queue:
					d.deliver(env)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panic", "event", env.event, "panic", r)
		}
	}()
	d.sink.Publish(env.channel, env.event, env.payload)
}
