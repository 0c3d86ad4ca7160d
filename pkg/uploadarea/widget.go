package uploadarea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	uerrors "github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/accept"
	"github.com/tongue/fotbroms/pkg/dom"
)

// Observed attribute names.
const (
	AttrAccepts  = "accepts"
	AttrDisabled = "disabled"
)

var (
	// ErrNoForm is returned by Attach when the element has no form ancestor.
	ErrNoForm = errors.New("uploadarea: parent form not found")

	// ErrNoTarget is the cause reported for uploads started before a target
	// was resolved.
	ErrNoTarget = errors.New("uploadarea: no upload target")

	// ErrDisabled is returned by Submit while the widget is disabled.
	ErrDisabled = errors.New("uploadarea: widget is disabled")
)

// NoTargetMessage is the error payload of fileuploaderror when no target
// was resolved.
const NoTargetMessage = "Form element not found."

// Target is where accepted files are sent.
type Target struct {
	URL    string
	Method string
}

// Options configures a Widget.
type Options struct {
	// Transport performs uploads. Default: an HTTPTransport on
	// http.DefaultClient.
	Transport Transport

	// Chooser is the platform file picker opened on click. If nil, clicks
	// are intercepted but open nothing.
	Chooser dom.Chooser

	// BaseURL resolves relative or empty form actions, like a document's
	// base URI.
	BaseURL string

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// settings is the immutable configuration snapshot shared by submissions.
type settings struct {
	accepts accept.List
	target  *Target
}

// Widget is an upload area bound to one host element.
type Widget struct {
	el        *dom.Element
	input     *dom.FileInput
	transport Transport
	baseURL   string
	logger    *slog.Logger

	current atomic.Pointer[settings]

	mu       sync.Mutex
	attached bool
	disabled bool
	removers []func()

	inflight sync.WaitGroup
}

// New creates a widget for el. The element's current "accepts" and
// "disabled" attributes are read as the initial configuration.
func New(el *dom.Element, opts Options) *Widget {
	transport := opts.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Widget{
		el:        el,
		input:     dom.NewFileInput(opts.Chooser),
		transport: transport,
		baseURL:   opts.BaseURL,
		logger:    logger.With("component", "uploadarea"),
		disabled:  isDisabled(el.GetAttribute(AttrDisabled)),
	}

	accepts := el.GetAttribute(AttrAccepts)
	w.current.Store(&settings{accepts: accept.Parse(accepts)})
	if accepts != "" {
		w.input.SetAttribute("accept", accepts)
	}
	return w
}

// Element returns the host element.
func (w *Widget) Element() *dom.Element { return w.el }

// FileInput returns the hidden file input the picker is opened through.
func (w *Widget) FileInput() *dom.FileInput { return w.input }

// Accepts returns the current accept-list.
func (w *Widget) Accepts() accept.List { return w.current.Load().accepts }

// Target returns the resolved upload target, or nil before Attach.
func (w *Widget) Target() *Target {
	if t := w.current.Load().target; t != nil {
		cp := *t
		return &cp
	}
	return nil
}

// Attached reports whether Attach succeeded and Detach has not been called.
func (w *Widget) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attached
}

// Disabled reports whether input is currently suspended.
func (w *Widget) Disabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}

// Attach resolves the upload target from the nearest form ancestor and
// starts listening for input. On error nothing is registered.
// A failed Attach also tears down an earlier successful one.
func (w *Widget) Attach() error {
	form := w.el.Closest("form")
	if form == nil {
		w.teardown()
		return uerrors.New("U001").
			WithDetailf("<%s> has no <form> ancestor.", w.el.Tag()).
			Wrap(ErrNoForm)
	}

	target, err := resolveTarget(form.Action(), w.baseURL)
	if err != nil {
		w.teardown()
		return uerrors.New("U002").
			WithDetailf("form action %q: %v", form.Action(), err).
			Wrap(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.update(func(s *settings) { s.target = target })
	w.attached = true
	if !w.disabled {
		w.addListenersLocked()
	}

	w.logger.Debug("attached", "target", target.URL, "accepts", w.current.Load().accepts.String())
	return nil
}

// Detach stops listening for input. Uploads in flight are not affected.
func (w *Widget) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.removeListenersLocked()
	w.attached = false
	w.logger.Debug("detached")
}

// teardown undoes Attach after a setup failure.
func (w *Widget) teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.removeListenersLocked()
	w.attached = false
	w.update(func(s *settings) { s.target = nil })
}

// AttributeChanged is the configuration hook. The host calls it whenever an
// observed attribute changes; other names are ignored.
//
// "accepts" replaces the accept-list. "disabled" suspends input while its
// value is non-empty and not "false", and resumes it otherwise.
func (w *Widget) AttributeChanged(name, oldValue, newValue string) {
	switch name {
	case AttrAccepts:
		list := accept.Parse(newValue)
		w.mu.Lock()
		w.update(func(s *settings) { s.accepts = list })
		w.mu.Unlock()
		w.input.SetAttribute("accept", newValue)

	case AttrDisabled:
		w.mu.Lock()
		defer w.mu.Unlock()
		w.disabled = isDisabled(newValue)
		if w.disabled {
			w.removeListenersLocked()
		} else if w.attached {
			w.addListenersLocked()
		}
	}
}

// SetAttribute sets an attribute on the host element and runs the
// configuration hook.
func (w *Widget) SetAttribute(name, value string) {
	old := w.el.SetAttribute(name, value)
	w.AttributeChanged(name, old, value)
}

// RemoveAttribute removes an attribute from the host element and runs the
// configuration hook with an empty value.
func (w *Widget) RemoveAttribute(name string) {
	old := w.el.RemoveAttribute(name)
	w.AttributeChanged(name, old, "")
}

// Submit classifies f and, if accepted, uploads it, exactly as if it had
// been picked. It fails only while the widget is disabled.
func (w *Widget) Submit(ctx context.Context, f *dom.File) (*Submission, error) {
	if w.Disabled() {
		return nil, ErrDisabled
	}
	return w.submit(ctx, f), nil
}

// Wait blocks until every upload started so far has reached a terminal
// state and its terminal event has been dispatched. It must not be called
// from a listener on the widget's element; use Submission.Wait there.
func (w *Widget) Wait() {
	w.inflight.Wait()
}

// update replaces the settings snapshot. Callers hold w.mu.
func (w *Widget) update(fn func(*settings)) {
	next := *w.current.Load()
	fn(&next)
	w.current.Store(&next)
}

func (w *Widget) addListenersLocked() {
	if w.removers != nil {
		return
	}
	w.removers = []func(){
		w.input.AddEventListener(dom.EventChange, w.onFileInputChange),
		w.el.AddEventListener(dom.EventClick, w.onClick),
		w.el.AddEventListener(dom.EventDragEnter, w.onDragEnter),
		w.el.AddEventListener(dom.EventDragLeave, w.onDragLeave),
		w.el.AddEventListener(dom.EventDrop, w.onDrop),
		w.el.AddEventListener(dom.EventDragOver, preventDefault),
	}
}

func (w *Widget) removeListenersLocked() {
	for _, remove := range w.removers {
		remove()
	}
	w.removers = nil
}

func (w *Widget) onClick(e *dom.Event) {
	e.PreventDefault()
	w.input.Click()
}

func (w *Widget) onFileInputChange(e *dom.Event) {
	e.PreventDefault()
	if len(e.Files) == 0 || e.Files[0] == nil {
		return
	}
	w.submit(context.Background(), e.Files[0])
}

func (w *Widget) onDrop(e *dom.Event) {
	e.PreventDefault()
	f := e.DataTransfer.First().AsFile()
	if f == nil {
		return
	}
	w.submit(context.Background(), f)
}

func (w *Widget) onDragEnter(e *dom.Event) {
	e.PreventDefault()
	item := e.DataTransfer.First()
	if item == nil {
		return
	}
	w.emit(EventFileEnter, EnterDetail{
		Accepted: w.current.Load().accepts.MatchesType(item.Type),
		Item:     item,
	})
}

func (w *Widget) onDragLeave(*dom.Event) {
	w.emit(EventFileLeave, nil)
}

func preventDefault(e *dom.Event) {
	e.PreventDefault()
}

// classify runs the accept-list against f and reports the verdict.
func (w *Widget) classify(list accept.List, f *dom.File) bool {
	if list.Accepts(f.Name, f.Type) {
		w.emit(EventFileAccepted, f)
		return true
	}
	w.emit(EventFileRejected, f)
	return false
}

func isDisabled(v string) bool {
	return v != "" && v != "false"
}

func resolveTarget(action, base string) (*Target, error) {
	if action == "" {
		action = base
	}
	if action == "" {
		return nil, errors.New("empty action and no base URL")
	}

	u, err := url.Parse(action)
	if err != nil {
		return nil, err
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("base URL: %w", err)
		}
		u = b.ResolveReference(u)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", u.String())
	}
	return &Target{URL: u.String(), Method: http.MethodPut}, nil
}
