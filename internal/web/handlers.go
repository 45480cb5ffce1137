package web

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/export"
	"github.com/JonMunkholm/grapher/internal/owid"
	"github.com/JonMunkholm/grapher/internal/table"
)

// dataset resolves the {id} route parameter, which may be a key or a UUID.
// It writes the error response itself when the lookup fails.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*catalog.Dataset, bool) {
	d, err := s.registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return d, true
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseBoolParam parses a boolean query parameter with a default value.
func parseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return defaultVal
	}
	return b
}

// parseSlugs splits a comma-separated query parameter, dropping blanks.
func parseSlugs(r *http.Request, name string) []string {
	var out []string
	for _, s := range strings.Split(r.URL.Query().Get(name), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pathParam returns an unescaped route parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// checkSlugs returns ErrColumnNotFound naming the first unknown slug.
func checkSlugs(t *owid.Table, slugs []string) error {
	for _, slug := range slugs {
		if !t.Has(slug) {
			return fmt.Errorf("%w: %s", table.ErrColumnNotFound, slug)
		}
	}
	return nil
}

// handleListDatasets returns a summary of every loaded dataset.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	all := s.registry.All()
	out := make([]catalog.Summary, len(all))
	for i, d := range all {
		out[i] = d.Summary()
	}
	writeJSON(w, out)
}

// handleGetDataset returns a dataset's columns, entities, selection and
// time range.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, d.Info())
}

// handleRows returns the rows of the filtered view as JSON objects.
//
// Query parameters:
//   - slugs: comma-separated columns to include (default: all)
//   - limit: maximum rows (default: all)
//   - all: "true" to ignore filter columns
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	s.writeRows(w, r, export.Options{
		Slugs:    parseSlugs(r, "slugs"),
		RowLimit: parseIntParam(r, "limit", 0),
		Filtered: !parseBoolParam(r, "all", false),
	})
}

// handleSelectedRows returns the rows of selected entities.
func (s *Server) handleSelectedRows(w http.ResponseWriter, r *http.Request) {
	s.writeRows(w, r, export.Options{
		Slugs:    parseSlugs(r, "slugs"),
		RowLimit: parseIntParam(r, "limit", 0),
		Selected: true,
	})
}

func (s *Server) writeRows(w http.ResponseWriter, r *http.Request, opts export.Options) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}

	var (
		buf   bytes.Buffer
		total int
	)
	err := d.With(func(t *owid.Table) error {
		if err := checkSlugs(t, opts.Slugs); err != nil {
			return err
		}
		switch {
		case opts.Selected:
			total = len(t.SelectedRows())
		case opts.Filtered:
			total = len(t.FilteredRows())
		default:
			total = t.NumRows()
		}
		return export.WriteJSON(&buf, t.Table, opts)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Write(buf.Bytes())
}

// handleEntitiesWith returns the entities of the filtered view that have a
// value in every column named by the slugs parameter.
func (s *Server) handleEntitiesWith(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}

	slugs := parseSlugs(r, "slugs")
	var names []string
	d.With(func(t *owid.Table) error {
		for name := range t.EntitiesWith(slugs) {
			names = append(names, name)
		}
		return nil
	})
	slices.Sort(names)
	if names == nil {
		names = []string{}
	}

	writeJSON(w, map[string]any{"slugs": slugs, "entities": names})
}
