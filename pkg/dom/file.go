package dom

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoPayload is returned by File.Open when the file has no byte source.
var ErrNoPayload = errors.New("dom: file has no payload")

// File is a user-supplied file: a name, a declared MIME type and a handle to
// its bytes. The MIME type is whatever the platform declared; it is never
// sniffed from content.
type File struct {
	// Name is the base name of the file as supplied by the platform.
	Name string

	// Type is the declared MIME type, possibly empty.
	Type string

	// Size is the payload length in bytes, or -1 when unknown.
	Size int64

	open func() (io.ReadCloser, error)
}

// NewFile creates an in-memory file.
func NewFile(name, mimeType string, data []byte) *File {
	return &File{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// NewStreamFile creates a file backed by an opener, for payloads that are
// produced lazily. Pass size -1 when the length is unknown.
func NewStreamFile(name, mimeType string, size int64, open func() (io.ReadCloser, error)) *File {
	return &File{Name: name, Type: mimeType, Size: size, open: open}
}

// OpenFile creates a file backed by a path on disk. The MIME type is derived
// from the extension the same way a browser file picker does; unknown
// extensions get an empty type.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	name := filepath.Base(path)
	return &File{
		Name: name,
		Type: TypeByName(name),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Open returns a fresh reader over the payload. Callers must close it.
func (f *File) Open() (io.ReadCloser, error) {
	if f == nil || f.open == nil {
		return nil, ErrNoPayload
	}
	return f.open()
}

// SizeKnown reports whether Size is a usable total for progress reporting.
func (f *File) SizeKnown() bool {
	return f != nil && f.Size > 0
}

var registerTypesOnce sync.Once

// TypeByName returns the MIME type registered for name's extension, without
// parameters, or "" when unknown.
func TypeByName(name string) string {
	registerTypesOnce.Do(registerCommonTypes)

	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mediaType
}

// registerCommonTypes fills gaps in minimal system mime tables so that
// common media files get the types browsers report for them.
func registerCommonTypes() {
	common := map[string]string{
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".heic": "image/heic",
	}
	for ext, typ := range common {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}
