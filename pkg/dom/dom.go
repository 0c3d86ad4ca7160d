// Package dom is a small, headless model of the parts of a browser document
// that an upload area interacts with: elements with attributes and event
// listeners, forms, file inputs, drag-and-drop data transfers and files.
//
// It lets the widget run unchanged under a real browser bridge, a CLI or a
// test. Event names follow the DOM ("click", "dragenter", "drop", ...).
//
// Dispatch is synchronous: listeners run on the caller's goroutine in
// registration order. Clicks and drag events bubble to ancestors, custom
// events don't. Elements are safe for concurrent use.
package dom

import "sync"

// DOM event names used by the upload area.
const (
	EventClick     = "click"
	EventChange    = "change"
	EventDragEnter = "dragenter"
	EventDragOver  = "dragover"
	EventDragLeave = "dragleave"
	EventDrop      = "drop"
)

// Event is a dispatched event.
type Event struct {
	// Type is the event name.
	Type string

	// Target is the element the event was dispatched on.
	Target *Element

	// CurrentTarget is the element whose listeners are running.
	CurrentTarget *Element

	// Bubbles makes Dispatch continue to the target's ancestors.
	Bubbles bool

	// DataTransfer is set for drag events.
	DataTransfer *DataTransfer

	// Files is set for change events on file inputs.
	Files []*File

	// Detail carries the payload of custom events.
	Detail any

	mu               sync.Mutex
	defaultPrevented bool
	stopped          bool
}

// NewEvent creates a plain bubbling event, like a user click.
func NewEvent(typ string) *Event {
	return &Event{Type: typ, Bubbles: true}
}

// NewDragEvent creates a bubbling drag event carrying dt.
func NewDragEvent(typ string, dt *DataTransfer) *Event {
	return &Event{Type: typ, DataTransfer: dt, Bubbles: true}
}

// NewCustomEvent creates an event with a payload. Custom events do not
// bubble.
func NewCustomEvent(typ string, detail any) *Event {
	return &Event{Type: typ, Detail: detail}
}

// PreventDefault marks the event so the host skips its default action.
func (e *Event) PreventDefault() {
	e.mu.Lock()
	e.defaultPrevented = true
	e.mu.Unlock()
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultPrevented
}

// StopPropagation keeps a bubbling event from reaching further ancestors.
// Listeners on the current element still run.
func (e *Event) StopPropagation() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

func (e *Event) propagationStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Listener handles a dispatched event.
type Listener func(*Event)

type listenerEntry struct {
	fn Listener
}

// Element is a node with attributes, a parent, and event listeners.
type Element struct {
	tag string

	mu        sync.RWMutex
	attrs     map[string]string
	parent    *Element
	children  []*Element
	listeners map[string][]*listenerEntry
}

// NewElement creates a detached element with the given tag name.
func NewElement(tag string) *Element {
	return &Element{
		tag:       tag,
		attrs:     make(map[string]string),
		listeners: make(map[string][]*listenerEntry),
	}
}

// NewForm creates a form element whose action is the given address.
func NewForm(action string) *Element {
	f := NewElement("form")
	f.SetAttribute("action", action)
	return f
}

// Tag returns the element's tag name.
func (e *Element) Tag() string { return e.tag }

// Parent returns the parent element, or nil.
func (e *Element) Parent() *Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

// AppendChild attaches child under e and returns child.
func (e *Element) AppendChild(child *Element) *Element {
	if old := child.Parent(); old != nil {
		old.RemoveChild(child)
	}
	e.mu.Lock()
	e.children = append(e.children, child)
	e.mu.Unlock()

	child.mu.Lock()
	child.parent = e
	child.mu.Unlock()
	return child
}

// RemoveChild detaches child from e. It is a no-op if child is not a child of e.
func (e *Element) RemoveChild(child *Element) {
	e.mu.Lock()
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	child.mu.Lock()
	if child.parent == e {
		child.parent = nil
	}
	child.mu.Unlock()
}

// Closest returns the nearest element with the given tag, starting with e
// itself and walking up the parent chain. It returns nil when none exists.
func (e *Element) Closest(tag string) *Element {
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur.tag == tag {
			return cur
		}
	}
	return nil
}

// Attribute returns the named attribute and whether it is set.
func (e *Element) Attribute(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// GetAttribute returns the named attribute, or "" when unset.
func (e *Element) GetAttribute(name string) string {
	v, _ := e.Attribute(name)
	return v
}

// SetAttribute sets an attribute and returns its previous value.
func (e *Element) SetAttribute(name, value string) (old string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	old = e.attrs[name]
	e.attrs[name] = value
	return old
}

// RemoveAttribute deletes an attribute and returns its previous value.
func (e *Element) RemoveAttribute(name string) (old string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	old = e.attrs[name]
	delete(e.attrs, name)
	return old
}

// Action returns the "action" attribute. It is meaningful on forms.
func (e *Element) Action() string {
	return e.GetAttribute("action")
}

// AddEventListener registers fn for events of type typ and returns a
// function that removes exactly this registration. Calling the returned
// function more than once is safe.
func (e *Element) AddEventListener(typ string, fn Listener) (remove func()) {
	entry := &listenerEntry{fn: fn}

	e.mu.Lock()
	e.listeners[typ] = append(e.listeners[typ], entry)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			list := e.listeners[typ]
			for i, l := range list {
				if l == entry {
					e.listeners[typ] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(e.listeners[typ]) == 0 {
				delete(e.listeners, typ)
			}
		})
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (e *Element) ListenerCount(typ string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[typ])
}

// Dispatch delivers ev to every listener registered for ev.Type at the time
// of the call, in registration order. A bubbling event then reaches the
// listeners of each ancestor in turn, until StopPropagation is called. It
// reports whether the default action should run, i.e.
// !ev.DefaultPrevented().
func (e *Element) Dispatch(ev *Event) bool {
	if ev.Target == nil {
		ev.Target = e
	}
	for cur := e; cur != nil; cur = cur.Parent() {
		ev.CurrentTarget = cur
		cur.deliver(ev)
		if !ev.Bubbles || ev.propagationStopped() {
			break
		}
	}
	return !ev.DefaultPrevented()
}

func (e *Element) deliver(ev *Event) {
	e.mu.RLock()
	list := make([]*listenerEntry, len(e.listeners[ev.Type]))
	copy(list, e.listeners[ev.Type])
	e.mu.RUnlock()

	for _, l := range list {
		l.fn(ev)
	}
}
