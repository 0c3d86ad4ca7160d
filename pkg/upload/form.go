package upload

import (
	"errors"
	"io"
	"mime"
	"net/http"

	uerrors "github.com/tongue/fotbroms/internal/errors"
)

// DefaultFormField is the multipart field FormHandler reads the file from.
const DefaultFormField = "file"

// FormHandler returns an http.Handler that stores the file of a plain
// multipart/form-data POST, as sent by the enclosing form when scripting
// is unavailable. The response is the same as Handler's.
func FormHandler(store Store) http.Handler {
	return FormHandlerWithConfig(store, DefaultConfig(), DefaultFormField)
}

// FormHandlerWithConfig returns a form handler reading the file from the
// named multipart field. Other fields are skipped; only the first file part
// with that name is stored.
func FormHandlerWithConfig(store Store, config *Config, field string) http.Handler {
	h := newHandler(store, config)
	config = h.config
	if field == "" {
		field = DefaultFormField
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				h.fail(w, r, http.StatusBadRequest, uerrors.New("S001").
					WithDetailf("The form has no %q file field.", field))
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if part.FormName() != field || part.FileName() == "" {
				part.Close()
				continue
			}

			contentType := part.Header.Get("Content-Type")
			if mt, _, err := mime.ParseMediaType(contentType); err == nil {
				contentType = mt
			}
			var body io.Reader = part
			if config.MaxFileSize > 0 {
				body = &limitedReader{r: part, n: config.MaxFileSize}
			}
			h.save(w, r, part.FileName(), contentType, -1, body)
			part.Close()
			return
		}
	})
}
