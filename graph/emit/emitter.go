package emit

// Emitter receives engine events. Implementations must be safe for
// concurrent use and must not block the engine; anything slow should
// buffer internally or drop.
type Emitter interface {
	Emit(event Event)
}

// NullEmitter discards all events.
type NullEmitter struct{}

// Emit does nothing.
func (NullEmitter) Emit(Event) {}

// Fanout forwards every event to each wrapped emitter in order.
type Fanout []Emitter

// Emit forwards the event to all emitters.
func (f Fanout) Emit(event Event) {
	for _, e := range f {
		e.Emit(event)
	}
}
