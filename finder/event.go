// Package finder coordinates asynchronous filter queries for one picker
// session: it spawns and supervises a winnowd worker, keeps at most one
// request in flight as the pattern changes, and reports progress to a
// consumer as an ordered event stream.
package finder

// Event is one step in a session's consumer-visible lifecycle. Within a
// session the order is: EventBegin once, then for each answered query
// EventFlush, EventAppend, EventRefresh, and finally EventDestroyed with
// nothing after it.
type Event interface {
	event()
}

// EventBegin is emitted once when session setup starts.
type EventBegin struct{}

// EventFlush tells the consumer to discard previously delivered candidates.
type EventFlush struct{}

// EventAppend delivers one batch of candidates.
type EventAppend struct {
	Candidates []string
}

// EventRefresh marks the end of one result delivery.
type EventRefresh struct{}

// EventDestroyed is the final event of a session.
type EventDestroyed struct{}

func (EventBegin) event()     {}
func (EventFlush) event()     {}
func (EventAppend) event()    {}
func (EventRefresh) event()   {}
func (EventDestroyed) event() {}

// Sink receives session events. The session invokes it synchronously with
// internal state held, so a sink must not call back into the session; hand
// the event to a channel or queue instead.
type Sink func(Event)
