package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	Accepts string
	Last    *LastUpload
}

// index renders the upload form with the client's last upload, if any.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data := indexData{Accepts: s.config.Server.Accepts}
	if up, ok := s.lastUpload(r); ok {
		data.Last = &up
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render index", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
