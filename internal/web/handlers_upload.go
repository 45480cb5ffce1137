package web

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/grapher/internal/logging"
)

// handleUpload loads a dataset from the request and registers it.
//
// The payload is either the "file" part of a multipart form or the raw
// request body. The file name (or the filename parameter, else "upload" plus
// the format parameter) selects the format: .json is a legacy payload, .csv,
// .tsv and .txt are delimited. The key parameter defaults to the file name
// without its extension; label is optional.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Data.MaxUploadBytes)

	q := r.URL.Query()
	var (
		body io.Reader = r.Body
		name           = q.Get("filename")
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondBadRequest(w, "no file provided")
			return
		}
		defer file.Close()
		body = file
		if name == "" {
			name = header.Filename
		}
	}

	if name == "" {
		format := strings.TrimPrefix(q.Get("format"), ".")
		if format == "" {
			format = "csv"
		}
		name = "upload." + format
	}

	d, err := s.loader.LoadNamed(r.Context(), q.Get("key"), q.Get("label"), name, body)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.WithFields(r.Context(), "dataset", d.Key, "id", d.ID).Info("dataset uploaded", "file", name)
	writeJSONStatus(w, http.StatusCreated, d.Info())
}
