package upload

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// FileServer serves stored files back. The request path, without its
// leading slash, is the stored path:
//
//	r.Get("/uploads/*", upload.FileServer(store, nil))
func FileServer(store Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "upload")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		f, err := store.Open(r.Context(), strings.TrimPrefix(r.URL.Path, "/"))
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("open stored file", "path", r.URL.Path, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		if f.ContentType != "" {
			w.Header().Set("Content-Type", f.ContentType)
		}
		if f.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
		}
		if f.Filename != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Filename}))
		}
		// Content addressed: the bytes behind a path never change.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, f.Reader); err != nil {
			logger.Debug("serve stored file", "path", f.Path, "error", err)
		}
	})
}
