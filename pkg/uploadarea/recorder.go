package uploadarea

import (
	"sync"

	"github.com/tongue/fotbroms/pkg/dom"
)

// Recorded is one captured widget event.
type Recorded struct {
	Type   string
	Detail any
}

// Recorder captures widget events dispatched on an element. It is meant for
// tests and command-line tools that want the event sequence after the fact.
type Recorder struct {
	mu      sync.Mutex
	events  []Recorded
	removes []func()
}

// Record starts capturing every widget event dispatched on el.
func Record(el *dom.Element) *Recorder {
	r := &Recorder{}
	for _, name := range EventNames {
		r.removes = append(r.removes, el.AddEventListener(name, func(e *dom.Event) {
			r.mu.Lock()
			r.events = append(r.events, Recorded{Type: e.Type, Detail: e.Detail})
			r.mu.Unlock()
		}))
	}
	return r
}

// Stop removes the recorder's listeners. Captured events are kept.
func (r *Recorder) Stop() {
	for _, remove := range r.removes {
		remove()
	}
}

// Events returns a copy of the captured events in dispatch order.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the captured event names in dispatch order.
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events named typ were captured.
func (r *Recorder) Count(typ string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// Progress returns the captured fileprogress values in order.
func (r *Recorder) Progress() []int {
	var out []int
	for _, e := range r.Events() {
		if e.Type == EventFileProgress {
			out = append(out, e.Detail.(int))
		}
	}
	return out
}

// Last returns the most recent event named typ.
func (r *Recorder) Last(typ string) (Recorded, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return events[i], true
		}
	}
	return Recorded{}, false
}

// Reset discards captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
