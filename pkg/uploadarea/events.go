package uploadarea

import "github.com/tongue/fotbroms/pkg/dom"

// Event names dispatched on the widget element.
const (
	EventFileEnter       = "fileenter"
	EventFileLeave       = "fileleave"
	EventFileAccepted    = "fileaccepted"
	EventFileRejected    = "filerejected"
	EventFileUploading   = "fileuploading"
	EventFileProgress    = "fileprogress"
	EventFileUploaded    = "fileuploaded"
	EventFileUploadError = "fileuploaderror"
)

// EventNames lists every event the widget dispatches, in lifecycle order.
var EventNames = []string{
	EventFileEnter,
	EventFileLeave,
	EventFileAccepted,
	EventFileRejected,
	EventFileUploading,
	EventFileProgress,
	EventFileUploaded,
	EventFileUploadError,
}

// EnterDetail is the payload of fileenter.
type EnterDetail struct {
	// Accepted previews the accept-list against the item's MIME type. The
	// file name is not available while hovering.
	Accepted bool

	// Item is the first dragged item.
	Item *dom.DataTransferItem
}

// UploadedDetail is the payload of fileuploaded.
type UploadedDetail struct {
	File *dom.File

	// Path is the server's response body, the stored reference.
	Path string
}

// UploadErrorDetail is the payload of fileuploaderror.
type UploadErrorDetail struct {
	File *dom.File

	// Error is the raw response body, or a description when no response
	// was received.
	Error string

	// Err is the typed cause, a *TransferError or ErrNoTarget.
	Err error
}

func (w *Widget) emit(name string, detail any) {
	w.el.Dispatch(dom.NewCustomEvent(name, detail))
}
