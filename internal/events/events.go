// Package events carries lifecycle events from coordinators to observers.
// Sinks are injected; there is no process-wide event log.
package events

import (
	"sync"

	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Sink receives events. Emit must not block for long and must be safe for
// concurrent use.
type Sink interface {
	Emit(e model.Event)
}

// Func adapts a function to Sink.
type Func func(e model.Event)

func (f Func) Emit(e model.Event) { f(e) }

type discard struct{}

func (discard) Emit(model.Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Or returns s, or Discard when s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

type multi []Sink

func (m multi) Emit(e model.Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *Recorder) Emit(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Of returns the recorded events of type t.
func (r *Recorder) Of(t model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// LogSink writes each event as a log entry. Failures log at warn level,
// poll attempts at debug, everything else at info.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a sink backed by log.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: logging.OrDefault(log).Named("events")}
}

func (s *LogSink) Emit(e model.Event) {
	fields := map[string]any{"event": string(e.Type)}
	if e.RunID != "" {
		fields["run_id"] = e.RunID
	}
	if e.LeaseID != "" {
		fields["lease_id"] = e.LeaseID
	}
	if e.ObjectID != "" {
		fields["object_id"] = string(e.ObjectID)
	}
	if e.Digest != "" {
		fields["digest"] = string(e.Digest)
	}
	if e.State != "" {
		fields["state"] = e.State
	}
	if e.ErrorCode != "" {
		fields["error_code"] = e.ErrorCode
	}
	for k, v := range e.Details {
		fields[k] = v
	}

	switch {
	case e.Error != "":
		fields["error"] = e.Error
		s.log.Warn(string(e.Type), fields)
	case e.Type == model.EventConfirmAttempt || e.Type == model.EventRenewalState:
		s.log.Debug(string(e.Type), fields)
	default:
		s.log.Info(string(e.Type), fields)
	}
}
