// Package uploadarea implements an upload area: an element that accepts a
// single file by drag-and-drop or through a file picker, checks it against an
// accept-list, and PUTs it to the action of its enclosing form while
// reporting progress and outcome as events.
//
// # Lifecycle
//
// The widget wraps a host element (see package dom). Attach resolves the
// upload target from the nearest <form> ancestor and registers listeners;
// Detach removes them. Configuration changes are pushed explicitly through
// AttributeChanged (or the SetAttribute/RemoveAttribute helpers):
//
//	form := dom.NewForm("https://example.com/upload")
//	el := form.AppendChild(dom.NewElement("upload-area"))
//	el.SetAttribute("accepts", ".png,image/*")
//
//	w := uploadarea.New(el, uploadarea.Options{Chooser: picker})
//	if err := w.Attach(); err != nil {
//	    return err // no form ancestor
//	}
//	defer w.Detach()
//
//	el.AddEventListener(uploadarea.EventFileUploaded, func(e *dom.Event) {
//	    d := e.Detail.(uploadarea.UploadedDetail)
//	    log.Println("stored at", d.Path)
//	})
//
// # Events
//
// All notifications are dispatched on the host element:
//
//	fileenter        EnterDetail         drag hover begins (preview only)
//	fileleave        nil                 drag hover ends
//	fileaccepted     *dom.File           accept-list passed
//	filerejected     *dom.File           accept-list failed
//	fileuploading    *dom.File           transfer started
//	fileprogress     int (0-100)         transfer progress, size known
//	fileuploaded     UploadedDetail      server answered 200 OK
//	fileuploaderror  UploadErrorDetail   anything else
//
// Exactly one of fileaccepted/filerejected fires per classified file. An
// accepted file produces fileuploading, zero or more non-decreasing
// fileprogress values, then exactly one of fileuploaded/fileuploaderror.
//
// # Concurrency
//
// Every accepted file is uploaded on its own goroutine. Submissions share
// only an immutable snapshot of the accept-list and target, which
// reconfiguration replaces rather than mutates. Disabling or detaching the
// widget stops new input; uploads already in flight still report.
package uploadarea
