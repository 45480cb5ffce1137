package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/grapher/internal/export"
	"github.com/JonMunkholm/grapher/internal/logging"
	"github.com/JonMunkholm/grapher/internal/owid"
)

// handleExport downloads a dataset as CSV, JSON or Parquet.
//
// Query parameters:
//   - slugs: comma-separated columns to include (default: all)
//   - limit: maximum rows, capped by the configured export limit
//   - all: "true" to ignore filter columns
//   - selected: "true" to export only selected rows
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ext := chi.URLParam(r, "format")
	format, ok := export.ParseFormat(ext)
	if !ok {
		s.respondError(w, r, fmt.Errorf("unsupported export format %q", ext), http.StatusBadRequest)
		return
	}

	d, ok := s.dataset(w, r)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", 0)
	if max := s.cfg.Data.ExportRowLimit; max > 0 && (limit == 0 || limit > max) {
		limit = max
	}
	opts := export.Options{
		Slugs:    parseSlugs(r, "slugs"),
		RowLimit: limit,
		Filtered: !parseBoolParam(r, "all", false),
		Selected: parseBoolParam(r, "selected", false),
	}

	start := time.Now()
	var buf bytes.Buffer
	err := d.With(func(t *owid.Table) error {
		if err := checkSlugs(t, opts.Slugs); err != nil {
			return err
		}
		return export.Write(&buf, t.Table, format, opts)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", d.Key, time.Now().Format("20060102_150405"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())

	logging.WithFields(r.Context(), "dataset", d.Key, "format", format.Extension()).
		Info("dataset exported", "bytes", buf.Len(), "duration", time.Since(start))
}
