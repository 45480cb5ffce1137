// Package owid layers entity and time bookkeeping over [table.Table].
//
// Every row describes one entity at one point in time. Entities are
// identified redundantly by name, code and numeric id; time is either a year
// or a day offset from an epoch. On top of the generic table this package
// adds entity cross-maps, entity availability queries, an entity selection
// API, strict delimited ingestion, legacy variable payload ingestion and the
// rolling-average builder.
package owid

import (
	"math"
	"sort"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

// wellKnownSpecs give the entity and time columns their display names and
// types when callers leave them untyped.
var wellKnownSpecs = map[string]table.ColumnSpec{
	table.EntityNameSlug: {Slug: table.EntityNameSlug, Name: "Entity", Type: coltype.Categorical},
	table.EntityCodeSlug: {Slug: table.EntityCodeSlug, Name: "Code", Type: coltype.Categorical},
	table.EntityIDSlug:   {Slug: table.EntityIDSlug, Name: "Entity ID", Type: coltype.Categorical},
	table.YearSlug:       {Slug: table.YearSlug, Name: "Year", Type: coltype.Temporal},
	table.DaySlug:        {Slug: table.DaySlug, Name: "Day", Type: coltype.Temporal},
}

// Table is an entity/time table.
type Table struct {
	*table.Table

	selected      map[string]bool
	selectedOrder []string
	selectionSlug string
}

// New builds a Table. Specs for the well-known entity and time slugs are
// typed automatically when left untyped; specs are detected from the rows
// when nil.
func New(rows []table.Row, specs []table.ColumnSpec, opts ...table.Option) *Table {
	if specs == nil {
		specs = table.DetectSpecs(rows)
	}
	typed := make([]table.ColumnSpec, len(specs))
	for i, s := range specs {
		typed[i] = withWellKnownDefaults(s)
	}

	return &Table{
		Table:    table.New(rows, typed, opts...),
		selected: make(map[string]bool),
	}
}

func withWellKnownDefaults(s table.ColumnSpec) table.ColumnSpec {
	known, ok := wellKnownSpecs[s.Slug]
	if !ok {
		return s
	}
	if s.Type == coltype.Untyped {
		s.Type = known.Type
	}
	if s.Name == "" || s.Name == s.Slug {
		s.Name = known.Name
	}
	return s
}

// ----------------------------------------------------------------------------
// Entity cross-maps
// ----------------------------------------------------------------------------

// entityMaps is built in one pass over all rows.
type entityMaps struct {
	codeToName map[string]string
	nameToCode map[string]string
	idToName   map[int]string
	nameToID   map[string]int
}

func (t *Table) entityMaps() entityMaps {
	return table.Memoize(t.Table, "owid:entityMaps", func() entityMaps {
		m := entityMaps{
			codeToName: make(map[string]string),
			nameToCode: make(map[string]string),
			idToName:   make(map[int]string),
			nameToID:   make(map[string]int),
		}
		for _, row := range t.Rows() {
			name, ok := row.String(table.EntityNameSlug)
			if !ok || name == "" {
				continue
			}

			// A pair is accepted only when neither side is taken, which keeps
			// the two code maps inverse to each other.
			if code, ok := row.String(table.EntityCodeSlug); ok && code != "" {
				_, codeTaken := m.codeToName[code]
				_, nameTaken := m.nameToCode[name]
				if !codeTaken && !nameTaken {
					m.codeToName[code] = name
					m.nameToCode[name] = code
				}
			}

			if f, ok := row.Float(table.EntityIDSlug); ok {
				id := int(f)
				if _, taken := m.idToName[id]; !taken {
					m.idToName[id] = name
				}
				if _, taken := m.nameToID[name]; !taken {
					m.nameToID[name] = id
				}
			}
		}
		return m
	})
}

// EntityCodeToNameMap maps entity codes to names. It is the inverse of
// EntityNameToCodeMap.
func (t *Table) EntityCodeToNameMap() map[string]string { return t.entityMaps().codeToName }

// EntityNameToCodeMap maps entity names to codes.
func (t *Table) EntityNameToCodeMap() map[string]string { return t.entityMaps().nameToCode }

// EntityIDToNameMap maps entity ids to names.
func (t *Table) EntityIDToNameMap() map[int]string { return t.entityMaps().idToName }

// EntityNameToIDMap maps entity names to ids.
func (t *Table) EntityNameToIDMap() map[string]int { return t.entityMaps().nameToID }

// ----------------------------------------------------------------------------
// Filtered-view aggregates
// ----------------------------------------------------------------------------

// AvailableEntities returns the entity names present in the filtered view in
// order of first appearance.
func (t *Table) AvailableEntities() []string {
	return table.MemoizeView(t.Table, "owid:availableEntities", func() []string {
		seen := make(map[string]bool)
		var out []string
		for _, row := range t.FilteredRows() {
			name, ok := row.String(table.EntityNameSlug)
			if !ok || name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
		return out
	})
}

// AvailableEntitiesSet is AvailableEntities as a set.
func (t *Table) AvailableEntitiesSet() map[string]struct{} {
	return table.MemoizeView(t.Table, "owid:availableEntitiesSet", func() map[string]struct{} {
		names := t.AvailableEntities()
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		return set
	})
}

// EntityIndex groups the filtered view's rows by entity name.
func (t *Table) EntityIndex() map[string][]table.Row {
	return table.MemoizeView(t.Table, "owid:entityIndex", func() map[string][]table.Row {
		idx := make(map[string][]table.Row)
		for _, row := range t.FilteredRows() {
			name, ok := row.String(table.EntityNameSlug)
			if !ok {
				continue
			}
			idx[name] = append(idx[name], row)
		}
		return idx
	})
}

// TimeSlug returns "day" when the table holds daily observations and "year"
// otherwise.
func (t *Table) TimeSlug() string {
	if c, ok := t.Get(table.DaySlug); ok && !c.IsEmpty() {
		return table.DaySlug
	}
	return table.YearSlug
}

// timeBounds is the time range of the filtered view.
type timeBounds struct {
	min, max float64
	ok       bool
}

func (t *Table) timeBounds() timeBounds {
	return table.MemoizeView(t.Table, "owid:timeBounds", func() timeBounds {
		slug := t.TimeSlug()
		b := timeBounds{min: math.Inf(1), max: math.Inf(-1)}
		for _, row := range t.FilteredRows() {
			v, ok := row.Float(slug)
			if !ok {
				continue
			}
			b.ok = true
			b.min = math.Min(b.min, v)
			b.max = math.Max(b.max, v)
		}
		return b
	})
}

// MinYear returns the earliest time value in the filtered view. For daily
// tables this is a day offset.
func (t *Table) MinYear() (float64, bool) {
	b := t.timeBounds()
	return b.min, b.ok
}

// MaxYear returns the latest time value in the filtered view.
func (t *Table) MaxYear() (float64, bool) {
	b := t.timeBounds()
	return b.max, b.ok
}

// TimelineTimes returns the distinct time values of the filtered view, sorted.
func (t *Table) TimelineTimes() []float64 {
	return table.MemoizeView(t.Table, "owid:timelineTimes", func() []float64 {
		slug := t.TimeSlug()
		seen := make(map[float64]bool)
		var out []float64
		for _, row := range t.FilteredRows() {
			v, ok := row.Float(slug)
			if !ok || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
		sort.Float64s(out)
		return out
	})
}

// EntitiesWith returns the entities having a value for every listed slug.
// No slugs yields the empty set; an unregistered slug matches no entity.
func (t *Table) EntitiesWith(slugs []string) map[string]struct{} {
	out := make(map[string]struct{})
	if len(slugs) == 0 {
		return out
	}

	sets := make([]map[string]struct{}, 0, len(slugs))
	for _, slug := range slugs {
		c, ok := t.Get(slug)
		if !ok {
			return out
		}
		sets = append(sets, c.EntityNamesUniqSet())
	}

	for name := range sets[0] {
		inAll := true
		for _, s := range sets[1:] {
			if _, ok := s[name]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[name] = struct{}{}
		}
	}
	return out
}

// AddEntityFilterColumn registers a filter column keeping only rows of the
// named entities.
func (t *Table) AddEntityFilterColumn(slug string, names []string) error {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	return t.AddFilterColumn(slug, func(row table.Row, _ int, _ *table.Table) bool {
		name, _ := row.String(table.EntityNameSlug)
		return keep[name]
	})
}
