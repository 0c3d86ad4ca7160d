package upload_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/tongue/fotbroms/pkg/accept"
	"github.com/tongue/fotbroms/pkg/upload"
)

type formPart struct {
	field, filename, contentType, body string
}

func newForm(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			if err := mw.WriteField(p.field, p.body); err != nil {
				t.Fatal(err)
			}
			continue
		}
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		if p.contentType != "" {
			hdr.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(p.body))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFormHandler_StoresFilePart(t *testing.T) {
	store := &recordingStore{}
	rec := httptest.NewRecorder()
	req := newForm(t,
		formPart{field: "title", body: "holiday"},
		formPart{field: "file", filename: "clip.mp4", contentType: "video/mp4", body: "frames"},
	)
	upload.FormHandler(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "uploads/abc.png" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if store.filename != "clip.mp4" || store.contentType != "video/mp4" || string(store.body) != "frames" {
		t.Fatalf("stored %q %q %q", store.filename, store.contentType, store.body)
	}
	if store.size != -1 {
		t.Fatalf("size = %d, want -1", store.size)
	}
}

func TestFormHandler_CustomField(t *testing.T) {
	store := &recordingStore{}
	rec := httptest.NewRecorder()
	h := upload.FormHandlerWithConfig(store, upload.DefaultConfig(), "video")
	h.ServeHTTP(rec, newForm(t,
		formPart{field: "file", filename: "ignored.png", body: "no"},
		formPart{field: "video", filename: "v.webm", contentType: "video/webm", body: "yes"},
	))

	if rec.Code != http.StatusOK || string(store.body) != "yes" || store.calls != 1 {
		t.Fatalf("status %d body %q calls %d", rec.Code, store.body, store.calls)
	}
}

func TestFormHandler_MissingFile(t *testing.T) {
	store := &recordingStore{}
	rec := httptest.NewRecorder()
	upload.FormHandler(store).ServeHTTP(rec, newForm(t, formPart{field: "file", body: "not a file"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "S001") || store.calls != 0 {
		t.Fatalf("body %q calls %d", rec.Body.String(), store.calls)
	}
}

func TestFormHandler_NotMultipart(t *testing.T) {
	rec := httptest.NewRecorder()
	upload.FormHandler(&recordingStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFormHandler_RejectsNonPOST(t *testing.T) {
	rec := httptest.NewRecorder()
	upload.FormHandler(&recordingStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))

	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("status %d Allow %q", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestFormHandler_Limits(t *testing.T) {
	t.Run("accept-list", func(t *testing.T) {
		store := &recordingStore{}
		cfg := upload.DefaultConfig()
		cfg.Accepts = accept.Parse("image/*")
		rec := httptest.NewRecorder()
		upload.FormHandlerWithConfig(store, cfg, "").ServeHTTP(rec, newForm(t,
			formPart{field: "file", filename: "clip.mp4", contentType: "video/mp4", body: "frames"}))

		if rec.Code != http.StatusUnsupportedMediaType || store.calls != 0 {
			t.Fatalf("status %d calls %d", rec.Code, store.calls)
		}
	})

	t.Run("size", func(t *testing.T) {
		cfg := upload.DefaultConfig()
		cfg.MaxFileSize = 4
		rec := httptest.NewRecorder()
		upload.FormHandlerWithConfig(&recordingStore{}, cfg, "").ServeHTTP(rec, newForm(t,
			formPart{field: "file", filename: "a.txt", body: "too long"}))

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		store := &recordingStore{}
		cfg := upload.DefaultConfig()
		cfg.MaxFileSize = 4
		rec := httptest.NewRecorder()
		upload.FormHandlerWithConfig(store, cfg, "").ServeHTTP(rec, newForm(t,
			formPart{field: "file", filename: "a.txt", body: "four"}))

		if rec.Code != http.StatusOK || string(store.body) != "four" {
			t.Fatalf("status %d body %q", rec.Code, store.body)
		}
	})
}
