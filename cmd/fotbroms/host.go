package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tongue/fotbroms/internal/config"
	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/uploadarea"
)

// host embeds an upload area in a headless document: a form whose action is
// the configured URL, with the widget's element inside it.
type host struct {
	form   *dom.Element
	el     *dom.Element
	widget *uploadarea.Widget
	report *reporter

	closeOnce sync.Once
}

func newHost(cfg *config.Config, logger *slog.Logger, out io.Writer, chooser dom.Chooser) (*host, error) {
	form := dom.NewForm(cfg.Client.URL)
	el := form.AppendChild(dom.NewElement("upload-area"))
	if cfg.Client.Accepts != "" {
		el.SetAttribute(uploadarea.AttrAccepts, cfg.Client.Accepts)
	}

	client := &http.Client{Timeout: cfg.Client.Timeout}
	w := uploadarea.New(el, uploadarea.Options{
		Transport: uploadarea.NewHTTPTransport(client),
		Chooser:   chooser,
		Logger:    logger,
	})
	if err := w.Attach(); err != nil {
		return nil, err
	}

	return &host{
		form:   form,
		el:     el,
		widget: w,
		report: newReporter(el, out),
	}, nil
}

// drop drops f on the widget as a single-item drag.
func (h *host) drop(f *dom.File) {
	dt := dom.FileTransfer(f)
	h.el.Dispatch(dom.NewDragEvent(dom.EventDragEnter, dt))
	h.el.Dispatch(dom.NewDragEvent(dom.EventDragOver, dt))
	h.el.Dispatch(dom.NewDragEvent(dom.EventDrop, dt))
}

// click opens the widget's file picker.
func (h *host) click() {
	h.el.Dispatch(dom.NewEvent(dom.EventClick))
}

// close waits for uploads in flight and detaches the widget. It is safe to
// call more than once.
func (h *host) close() {
	h.closeOnce.Do(func() {
		h.widget.Wait()
		h.widget.Detach()
		h.report.stop()
	})
}

// reporter prints widget events and tallies outcomes.
type reporter struct {
	out     io.Writer
	removes []func()

	mu       sync.Mutex
	uploaded int
	rejected int
	failed   int
	paths    []string
}

func newReporter(el *dom.Element, out io.Writer) *reporter {
	r := &reporter{out: out}
	on := func(name string, fn func(*dom.Event)) {
		r.removes = append(r.removes, el.AddEventListener(name, fn))
	}

	on(uploadarea.EventFileRejected, func(e *dom.Event) {
		f := e.Detail.(*dom.File)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rejected++
		fmt.Fprintf(r.out, "\033[33m⚠\033[0m %s rejected: %s does not match the accept-list\n", f.Name, typeOrUnknown(f.Type))
	})
	on(uploadarea.EventFileUploading, func(e *dom.Event) {
		f := e.Detail.(*dom.File)
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintf(r.out, "  uploading %s (%s)\n", f.Name, typeOrUnknown(f.Type))
	})
	on(uploadarea.EventFileProgress, func(e *dom.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintf(r.out, "  %3d%%\n", e.Detail.(int))
	})
	on(uploadarea.EventFileUploaded, func(e *dom.Event) {
		d := e.Detail.(uploadarea.UploadedDetail)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.uploaded++
		r.paths = append(r.paths, d.Path)
		fmt.Fprintf(r.out, "\033[32m✓\033[0m %s stored as %s\n", d.File.Name, d.Path)
	})
	on(uploadarea.EventFileUploadError, func(e *dom.Event) {
		d := e.Detail.(uploadarea.UploadErrorDetail)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.failed++
		fmt.Fprintf(r.out, "\033[31m✗\033[0m %s failed: %s\n", d.File.Name, d.Error)
	})
	return r
}

func (r *reporter) stop() {
	for _, remove := range r.removes {
		remove()
	}
}

// counts returns the number of uploaded, rejected and failed files.
func (r *reporter) counts() (uploaded, rejected, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploaded, r.rejected, r.failed
}

// lastPath returns the stored path of the most recent upload.
func (r *reporter) lastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func typeOrUnknown(t string) string {
	if t == "" {
		return "unknown type"
	}
	return t
}
