package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// LogEmitter writes events to an io.Writer, one line per event.
//
// Two formats are supported: a human-oriented text format and JSONL for
// machine consumption. Writes are serialized so interleaved goroutines
// produce whole lines.
type LogEmitter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewLogEmitter creates a text-format log emitter.
func NewLogEmitter(w io.Writer) *LogEmitter {
	return &LogEmitter{w: w}
}

// NewJSONLEmitter creates a JSONL log emitter, one JSON object per line.
func NewJSONLEmitter(w io.Writer) *LogEmitter {
	return &LogEmitter{w: w, json: true}
}

// Emit writes the event as one line.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		line := struct {
			Time time.Time `json:"time"`
			Event
		}{Time: time.Now().UTC(), Event: event}
		data, err := json.Marshal(line)
		if err != nil {
			return
		}
		_, _ = l.w.Write(append(data, '\n'))
		return
	}

	ts := time.Now().Format("15:04:05.000")
	if event.NodeID != "" {
		fmt.Fprintf(l.w, "%s [%s] step=%d node=%s %s\n", ts, event.ThreadID, event.Step, event.NodeID, event.Msg)
		return
	}
	fmt.Fprintf(l.w, "%s [%s] %s\n", ts, event.ThreadID, event.Msg)
}
