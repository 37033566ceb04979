// Package event is a minimal synchronous publish/subscribe mechanism.
// Handlers run inline on the firing goroutine; the engine is
// single-threaded by contract, so there is no locking here.
package event

// Type names a kind of event. Packages that fire events declare their own
// Type constants next to the payload they carry.
type Type string

type Event struct {
	Type Type
	// Data is the payload declared by the firing package, nil when the
	// event carries none.
	Data any
}

type Handler func(Event)

// Handle identifies a subscription so it can be removed again.
type Handle struct {
	typ Type
	id  int
}

type subscription struct {
	id      int
	handler Handler
}

// Emitter dispatches events to subscribed handlers in subscription order.
// The zero value is ready to use.
type Emitter struct {
	subs   map[Type][]subscription
	nextID int
}

func (e *Emitter) On(t Type, h Handler) Handle {
	if e.subs == nil {
		e.subs = make(map[Type][]subscription)
	}
	e.nextID++
	e.subs[t] = append(e.subs[t], subscription{id: e.nextID, handler: h})
	return Handle{typ: t, id: e.nextID}
}

func (e *Emitter) Off(h Handle) {
	subs := e.subs[h.typ]
	for i := range subs {
		if subs[i].id == h.id {
			e.subs[h.typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Fire invokes all handlers for the event's type. Handlers subscribed
// during dispatch do not receive the current event.
func (e *Emitter) Fire(ev Event) {
	subs := e.subs[ev.Type]
	for _, s := range subs {
		s.handler(ev)
	}
}

// Listens reports whether any handler is subscribed for t.
func (e *Emitter) Listens(t Type) bool {
	return len(e.subs[t]) > 0
}
