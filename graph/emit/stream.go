package emit

// StreamEmitter forwards events to a channel for live consumption, such as
// driving a progress UI while a run executes.
//
// Emit never blocks: when the consumer falls behind and the buffer fills,
// events are dropped. The engine's correctness never depends on delivery;
// streaming is a best-effort view.
type StreamEmitter struct {
	ch chan Event
}

// NewStreamEmitter creates a stream emitter with the given buffer size.
// Sizes below 1 are raised to 1.
func NewStreamEmitter(buffer int) *StreamEmitter {
	if buffer < 1 {
		buffer = 1
	}
	return &StreamEmitter{ch: make(chan Event, buffer)}
}

// Emit delivers the event if the buffer has room, otherwise drops it.
func (s *StreamEmitter) Emit(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

// Events returns the receive side of the stream.
func (s *StreamEmitter) Events() <-chan Event {
	return s.ch
}

// Close closes the stream. Emit must not be called after Close.
func (s *StreamEmitter) Close() {
	close(s.ch)
}
