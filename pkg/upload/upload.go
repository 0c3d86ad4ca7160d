package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	uerrors "github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/accept"
)

// HeaderFileName carries the client's original file name.
const HeaderFileName = "File-Name"

// ErrNotFound is returned when a stored file doesn't exist.
var ErrNotFound = errors.New("upload: file not found")

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("upload: file too large")

// Store is the interface for upload storage backends.
//
// Files are content addressed: the stored path is derived from the SHA-256
// of the contents plus the original extension, so saving the same bytes
// twice yields the same path.
type Store interface {
	// Save stores the contents of r and returns the stored file. size is
	// the declared length, or -1 when unknown.
	Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*File, error)

	// Open returns a stored file by the path Save reported. The caller
	// must Close it.
	Open(ctx context.Context, path string) (*File, error)

	// Cleanup removes files older than maxAge and reports how many.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

// File represents a stored upload.
type File struct {
	// Path is the stored reference, e.g. "uploads/<sha256>.png".
	Path string

	// Filename is the original filename from the client.
	Filename string

	// ContentType is the MIME type declared at upload.
	ContentType string

	// Size is the file size in bytes.
	Size int64

	// StoredAt is when the file was saved.
	StoredAt time.Time

	// Reader provides access to the file contents. Only set by Open.
	Reader io.ReadCloser
}

// Close closes the file reader if open.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// Config holds configuration for the upload handler.
type Config struct {
	// MaxFileSize is the maximum allowed file size in bytes. Zero or less
	// means no limit.
	MaxFileSize int64

	// Accepts restricts stored files with the same rules the widget uses.
	// An empty list accepts everything.
	Accepts accept.List

	// OnStored is called after a file was saved and before the response is
	// written, so it may still set headers and cookies on w.
	OnStored func(w http.ResponseWriter, r *http.Request, f *File)

	// OnRejected is called when a request is answered with an error status.
	OnRejected func(r *http.Request, status int, err error)

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: 1 << 30, // 1GiB
	}
}

// Handler returns an http.Handler that stores PUT request bodies.
// Mount this on your router: r.Put("/", upload.Handler(store))
//
// The body is the raw file, the File-Name header its original name and
// Content-Type its MIME type. On success the response is 200 with the
// stored path as a plain-text body; on failure the body is the error text.
func Handler(store Store) http.Handler {
	return HandlerWithConfig(store, DefaultConfig())
}

// HandlerWithConfig returns an upload handler with custom configuration.
func HandlerWithConfig(store Store, config *Config) http.Handler {
	h := newHandler(store, config)
	config = h.config
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.Header().Set("Allow", http.MethodPut)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if config.MaxFileSize > 0 && r.ContentLength > config.MaxFileSize {
			h.fail(w, r, http.StatusRequestEntityTooLarge, tooLarge(r.ContentLength, config.MaxFileSize))
			return
		}
		if config.MaxFileSize > 0 {
			// SECURITY: bodies without a declared length are cut off at the limit
			r.Body = http.MaxBytesReader(w, r.Body, config.MaxFileSize)
		}
		h.save(w, r, r.Header.Get(HeaderFileName), r.Header.Get("Content-Type"), r.ContentLength, r.Body)
	})
}

type handler struct {
	store  Store
	config *Config
	logger *slog.Logger
}

func newHandler(store Store, config *Config) *handler {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &handler{
		store:  store,
		config: config,
		logger: logger.With("component", "upload"),
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.logger.Warn("upload rejected", "status", status, "error", err, "remote", r.RemoteAddr)
	if h.config.OnRejected != nil {
		h.config.OnRejected(r, status, err)
	}
	http.Error(w, err.Error(), status)
}

// save checks the file against the accept-list and size limit, stores it
// and answers with the stored path.
func (h *handler) save(w http.ResponseWriter, r *http.Request, name, contentType string, size int64, body io.Reader) {
	if name == "" {
		h.fail(w, r, http.StatusBadRequest, uerrors.New("S001"))
		return
	}
	if !h.config.Accepts.Accepts(name, contentType) {
		h.fail(w, r, http.StatusUnsupportedMediaType, uerrors.New("S002").
			WithDetailf("%q (%s) does not match %q", name, contentType, h.config.Accepts.String()))
		return
	}

	f, err := h.store.Save(r.Context(), name, contentType, size, body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.Is(err, ErrTooLarge) || errors.As(err, &mbe) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, tooLarge(-1, h.config.MaxFileSize))
			return
		}
		h.fail(w, r, http.StatusInternalServerError, uerrors.New("S004").Wrap(err))
		return
	}

	h.logger.Info("file stored", "path", f.Path, "file", f.Filename, "size", f.Size, "type", f.ContentType)
	if h.config.OnStored != nil {
		h.config.OnStored(w, r, f)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, f.Path)
}

func tooLarge(size, limit int64) *uerrors.Error {
	e := uerrors.New("S003")
	if size >= 0 {
		return e.WithDetailf("%d bytes exceeds the %d byte limit", size, limit)
	}
	return e.WithDetailf("body exceeds the %d byte limit", limit)
}

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,16}$`)

// storedExt returns the extension kept on stored names, or "" when the
// original one is missing or unusual.
func storedExt(filename string) string {
	ext := filepath.Ext(filename)
	if !safeExt.MatchString(ext) {
		return ""
	}
	return ext
}

// limitedReader fails with ErrTooLarge once more than n bytes were read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
