package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/logging"
	"github.com/JonMunkholm/grapher/internal/owid"
	"github.com/JonMunkholm/grapher/internal/table"
)

// selectionRequest is the body of PUT .../selection.
type selectionRequest struct {
	Entities []string `json:"entities"`
}

// selectionResponse reports the selection after a change.
type selectionResponse struct {
	Selected []string `json:"selected"`
	Rows     int      `json:"selectedRows"`
}

// entityFilterRequest is the body of POST .../filters.
type entityFilterRequest struct {
	Slug     string   `json:"slug"`
	Entities []string `json:"entities"`
}

// rollingAverageRequest is the body of POST .../rolling-averages.
type rollingAverageRequest struct {
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	ValueSlug      string  `json:"valueSlug"`
	DateSlug       string  `json:"dateSlug"`
	GroupSlug      string  `json:"groupSlug"`
	WindowSize     int     `json:"windowSize"`
	Multiplier     float64 `json:"multiplier"`
	IntervalChange int     `json:"intervalChange"`
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		respondBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// knownEntities returns every entity name of t, ignoring filters.
func knownEntities(t *owid.Table) map[string]struct{} {
	c, ok := t.Get(table.EntityNameSlug)
	if !ok {
		return nil
	}
	return c.EntityNamesUniqSet()
}

func checkEntities(t *owid.Table, names ...string) error {
	known := knownEntities(t)
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("%w: %s", catalog.ErrEntityNotFound, n)
		}
	}
	return nil
}

// mutateSelection runs fn against the dataset's table and responds with the
// resulting selection.
func (s *Server) mutateSelection(w http.ResponseWriter, r *http.Request, fn func(t *owid.Table) error) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}

	var resp selectionResponse
	err := d.With(func(t *owid.Table) error {
		if err := fn(t); err != nil {
			return err
		}
		resp.Selected = t.SelectedEntityNames()
		resp.Rows = len(t.SelectedRows())
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "dataset", d.Key).Debug("selection changed", "selected", len(resp.Selected))
	if resp.Selected == nil {
		resp.Selected = []string{}
	}
	writeJSON(w, resp)
}

// handleSetSelection replaces the selection with the entities in the body.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.mutateSelection(w, r, func(t *owid.Table) error {
		if err := checkEntities(t, req.Entities...); err != nil {
			return err
		}
		return t.SetSelectedEntities(req.Entities)
	})
}

// handleClearSelection deselects every entity.
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.mutateSelection(w, r, func(t *owid.Table) error {
		return t.ClearSelection()
	})
}

// handleSelectEntity adds one entity to the selection.
func (s *Server) handleSelectEntity(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "entity")
	s.mutateSelection(w, r, func(t *owid.Table) error {
		if err := checkEntities(t, name); err != nil {
			return err
		}
		return t.SelectEntity(name)
	})
}

// handleDeselectEntity removes one entity from the selection. Unknown or
// unselected entities are a no-op.
func (s *Server) handleDeselectEntity(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "entity")
	s.mutateSelection(w, r, func(t *owid.Table) error {
		return t.DeselectEntity(name)
	})
}

// handleAddEntityFilter registers a filter column keeping only the given
// entities. Registering an existing slug again changes nothing.
func (s *Server) handleAddEntityFilter(w http.ResponseWriter, r *http.Request) {
	var req entityFilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Slug == "" {
		respondBadRequest(w, "filter slug is required")
		return
	}

	s.mutateColumns(w, r, func(t *owid.Table) error {
		return t.AddEntityFilterColumn(req.Slug, req.Entities)
	})
}

// handleAddRollingAverage registers a rolling-average column. The window
// defaults to the configured rolling window.
func (s *Server) handleAddRollingAverage(w http.ResponseWriter, r *http.Request) {
	var req rollingAverageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	typ, ok := coltype.ParseType(req.Type)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: unknown type %q", table.ErrInvalidSpec, req.Type))
		return
	}
	window := req.WindowSize
	if window == 0 {
		window = s.cfg.Data.RollingWindow
	}

	opts := owid.RollingAverageOptions{
		Slug:           req.Slug,
		Name:           req.Name,
		Type:           typ,
		ValueSlug:      req.ValueSlug,
		DateSlug:       req.DateSlug,
		GroupSlug:      req.GroupSlug,
		WindowSize:     window,
		Multiplier:     req.Multiplier,
		IntervalChange: req.IntervalChange,
	}
	s.mutateColumns(w, r, func(t *owid.Table) error {
		if req.ValueSlug != "" {
			if err := checkSlugs(t, []string{req.ValueSlug}); err != nil {
				return err
			}
		}
		return t.AddRollingAverageColumn(opts)
	})
}

// handleDeleteColumn removes a column. The entity name column cannot be
// removed.
func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.mutateColumns(w, r, func(t *owid.Table) error {
		if err := checkSlugs(t, []string{slug}); err != nil {
			return err
		}
		if slug == table.EntityNameSlug {
			return fmt.Errorf("%w: %s cannot be deleted", table.ErrInvalidSpec, slug)
		}
		t.DeleteColumnBySlug(slug)
		return nil
	})
}

// mutateColumns runs fn and responds with the dataset's updated info.
func (s *Server) mutateColumns(w http.ResponseWriter, r *http.Request, fn func(t *owid.Table) error) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}
	if err := d.With(fn); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, d.Info())
}

// handleDeleteDataset removes a dataset from the catalog.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}
	s.registry.Remove(d.ID.String())
	logging.WithFields(r.Context(), "dataset", d.Key).Info("dataset removed")
	w.WriteHeader(http.StatusNoContent)
}
