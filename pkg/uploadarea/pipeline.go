package uploadarea

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tongue/fotbroms/pkg/dom"
)

// State is the position of a submission in the upload state machine.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateUploading
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further events follow this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// TransferError describes an upload that did not end in 200 OK.
type TransferError struct {
	// StatusCode is the response status, or 0 when none was received.
	StatusCode int

	// Body is the raw response body.
	Body string

	// Err is the transport failure, if any.
	Err error
}

// Error implements error.
func (e *TransferError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("upload: status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("upload: %v", e.Err)
	default:
		return fmt.Sprintf("upload: status %d: %s", e.StatusCode, e.Body)
	}
}

// Unwrap returns the transport failure.
func (e *TransferError) Unwrap() error { return e.Err }

// Outcome is the terminal result of one submission.
type Outcome struct {
	// Path is the stored reference returned by the server on success.
	Path string

	// Err is nil on success, otherwise a *TransferError or ErrNoTarget.
	Err error
}

// OK reports whether the upload succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Submission tracks one file from classification to its terminal event.
type Submission struct {
	// ID identifies the submission in logs.
	ID string

	// File is the candidate file.
	File *dom.File

	state    atomic.Int32
	accepted bool

	// order serializes progress against the terminal event so that no
	// progress is reported after it.
	order    sync.Mutex
	terminal bool
	percent  int
	outcome  Outcome

	done chan struct{}
}

func newSubmission(f *dom.File) *Submission {
	return &Submission{
		ID:      uuid.NewString(),
		File:    f,
		percent: -1,
		done:    make(chan struct{}),
	}
}

// State returns the current state.
func (s *Submission) State() State { return State(s.state.Load()) }

// Accepted reports whether the file passed the accept-list.
func (s *Submission) Accepted() bool { return s.accepted }

// Done is closed once the outcome is known: right after classification for
// rejected files, just before the terminal event for uploads. Progress is
// never reported after Done is closed.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Wait blocks until Done is closed or ctx ends, and returns the outcome.
// Rejected files yield a zero Outcome.
func (s *Submission) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		s.order.Lock()
		defer s.order.Unlock()
		return s.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// submit runs one file through the filter and, if accepted, starts the
// upload on its own goroutine.
func (w *Widget) submit(ctx context.Context, f *dom.File) *Submission {
	snap := w.current.Load()
	s := newSubmission(f)
	w.transition(s, StateValidating)

	if !w.classify(snap.accepts, f) {
		w.transition(s, StateIdle)
		close(s.done)
		return s
	}
	s.accepted = true

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.upload(ctx, s, snap.target)
	}()
	return s
}

func (w *Widget) upload(ctx context.Context, s *Submission, target *Target) {
	w.transition(s, StateUploading)
	w.emit(EventFileUploading, s.File)

	if target == nil {
		w.finish(s, UploadErrorDetail{File: s.File, Error: NoTargetMessage, Err: ErrNoTarget})
		return
	}

	req := &Request{Method: target.Method, URL: target.URL, File: s.File}
	resp, err := w.transport.RoundTrip(ctx, req, func(loaded, total int64) {
		w.progress(s, loaded, total)
	})

	switch {
	case err == nil && resp != nil && resp.StatusCode == http.StatusOK:
		w.finish(s, UploadedDetail{File: s.File, Path: resp.Body})

	default:
		te := &TransferError{Err: err}
		payload := ""
		if resp != nil {
			te.StatusCode = resp.StatusCode
			te.Body = resp.Body
			payload = resp.Body
		}
		if resp == nil && err != nil {
			payload = err.Error()
		}
		w.finish(s, UploadErrorDetail{File: s.File, Error: payload, Err: te})
	}
}

// progress reports a rounded, non-decreasing percentage. Updates with an
// unknown total and updates after the terminal event are dropped.
func (w *Widget) progress(s *Submission, loaded, total int64) {
	if total <= 0 {
		return
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))
	pct = min(max(pct, 0), 100)

	s.order.Lock()
	defer s.order.Unlock()
	if s.terminal {
		return
	}
	if pct < s.percent {
		pct = s.percent
	}
	s.percent = pct
	w.emit(EventFileProgress, pct)
}

// finish records the outcome, releases waiters and dispatches the terminal
// event. Waiters are released first so that listeners may call
// Submission.Wait.
func (w *Widget) finish(s *Submission, detail any) {
	s.order.Lock()
	s.terminal = true
	var name string
	switch d := detail.(type) {
	case UploadedDetail:
		s.outcome = Outcome{Path: d.Path}
		w.transition(s, StateSucceeded)
		name = EventFileUploaded
	case UploadErrorDetail:
		s.outcome = Outcome{Err: d.Err}
		w.transition(s, StateFailed)
		name = EventFileUploadError
	}
	s.order.Unlock()
	close(s.done)

	switch d := detail.(type) {
	case UploadedDetail:
		w.logger.Info("file uploaded", "id", s.ID, "file", s.File.Name, "path", d.Path)
	case UploadErrorDetail:
		w.logger.Warn("file upload failed", "id", s.ID, "file", s.File.Name, "error", d.Err)
	}
	w.emit(name, detail)
}

func (w *Widget) transition(s *Submission, next State) {
	prev := State(s.state.Swap(int32(next)))
	w.logger.Debug("submission state", "id", s.ID, "file", s.File.Name, "from", prev, "to", next)
}
