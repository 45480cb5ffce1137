// Package table implements a small columnar store over sparse rows.
//
// A [Table] exclusively owns its row sequence and its column registry
// (insertion order is display order). Columns are read-only projections
// computed on demand from the current rows. Computed columns are materialized
// into the rows once, when registered; filter columns are the exception and
// are re-evaluated on every read of [Table.FilteredRows].
//
// Derived values are memoized per mutation generation (see [Memoize]).
// A Table is not safe for concurrent use; callers that share one across
// goroutines must serialize access.
package table

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

// Table owns a row sequence and the registry of columns over it.
type Table struct {
	rows  []Row
	specs []ColumnSpec
	index map[string]int // slug -> position in specs

	filterSlugs    []string
	selectionSlugs []string

	gen    uint64
	memo   memo
	logger *slog.Logger
}

// New builds a table from rows and column specs. Rows are deep-copied unless
// WithoutCloning is given. When specs is nil, untyped specs are detected from
// the row keys.
func New(rows []Row, specs []ColumnSpec, opts ...Option) *Table {
	o := applyOptions(opts)

	if o.cloneRows {
		rows = cloneRows(rows)
	}
	if rows == nil {
		rows = []Row{}
	}
	if specs == nil {
		specs = DetectSpecs(rows)
	}

	t := &Table{
		rows:   rows,
		index:  make(map[string]int),
		logger: o.logger,
	}
	t.AddSpecs(specs...)
	return t
}

// Rows returns the full row sequence. Callers must not modify it.
func (t *Table) Rows() []Row {
	return t.rows
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// NumColumns returns the number of registered columns.
func (t *Table) NumColumns() int {
	return len(t.specs)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return len(t.rows) == 0
}

// Logger returns the table's logger.
func (t *Table) Logger() *slog.Logger {
	return t.logger
}

// ----------------------------------------------------------------------------
// Registry
// ----------------------------------------------------------------------------

// AddSpecs registers column specs. A slug that is already registered keeps its
// existing spec; the first writer wins.
func (t *Table) AddSpecs(specs ...ColumnSpec) {
	added := 0
	for _, spec := range specs {
		if spec.Slug == "" {
			continue
		}
		if _, exists := t.index[spec.Slug]; exists {
			continue
		}
		t.index[spec.Slug] = len(t.specs)
		t.specs = append(t.specs, spec)
		added++
	}
	if added > 0 {
		t.touch()
	}
}

// Has reports whether slug is registered.
func (t *Table) Has(slug string) bool {
	_, ok := t.index[slug]
	return ok
}

// Spec returns the registered spec for slug.
func (t *Table) Spec(slug string) (ColumnSpec, bool) {
	i, ok := t.index[slug]
	if !ok {
		return ColumnSpec{}, false
	}
	return t.specs[i], true
}

// Get returns the column for slug, or false when slug is not registered.
func (t *Table) Get(slug string) (*Column, bool) {
	spec, ok := t.Spec(slug)
	if !ok {
		return nil, false
	}
	return &Column{spec: spec, table: t}, true
}

// MustGet returns the column for slug and panics when it is not registered.
// Use it only where registration is guaranteed by construction.
func (t *Table) MustGet(slug string) *Column {
	c, ok := t.Get(slug)
	if !ok {
		panic(fmt.Sprintf("%v: %q", ErrColumnNotFound, slug))
	}
	return c
}

// ColumnSlugs returns registered slugs in display order.
func (t *Table) ColumnSlugs() []string {
	return Memoize(t, "columnSlugs", func() []string {
		slugs := make([]string, len(t.specs))
		for i, s := range t.specs {
			slugs[i] = s.Slug
		}
		return slugs
	})
}

// ColumnsAsArray returns all columns in display order.
func (t *Table) ColumnsAsArray() []*Column {
	return Memoize(t, "columnsAsArray", func() []*Column {
		cols := make([]*Column, len(t.specs))
		for i, s := range t.specs {
			cols[i] = &Column{spec: s, table: t}
		}
		return cols
	})
}

// ColumnsBySlug returns all columns keyed by slug.
func (t *Table) ColumnsBySlug() map[string]*Column {
	return Memoize(t, "columnsBySlug", func() map[string]*Column {
		m := make(map[string]*Column, len(t.specs))
		for _, c := range t.ColumnsAsArray() {
			m[c.Slug()] = c
		}
		return m
	})
}

// DeleteColumnBySlug removes a column from the registry and strips its field
// from every row. Unknown slugs are ignored.
func (t *Table) DeleteColumnBySlug(slug string) {
	i, ok := t.index[slug]
	if !ok {
		return
	}

	t.specs = slices.Delete(t.specs, i, i+1)
	delete(t.index, slug)
	for j := i; j < len(t.specs); j++ {
		t.index[t.specs[j].Slug] = j
	}
	t.filterSlugs = slices.DeleteFunc(t.filterSlugs, func(s string) bool { return s == slug })
	t.selectionSlugs = slices.DeleteFunc(t.selectionSlugs, func(s string) bool { return s == slug })

	for _, row := range t.rows {
		delete(row, slug)
	}

	t.touch()
	t.logger.Debug("column deleted", "slug", slug, "rows", len(t.rows))
}

// CloneAndAddRowsAndDetectColumns appends a deep copy of rows and registers
// every new key as an untyped raw column.
func (t *Table) CloneAndAddRowsAndDetectColumns(rows []Row) {
	if len(rows) == 0 {
		return
	}
	copied := cloneRows(rows)
	t.rows = append(t.rows, copied...)
	t.AddSpecs(DetectSpecs(copied)...)
	t.touch()
}

// ----------------------------------------------------------------------------
// Row helpers
// ----------------------------------------------------------------------------

// RowsWith returns the rows holding a non-empty value for every slug.
func (t *Table) RowsWith(slugs ...string) []Row {
	var out []Row
	for _, row := range t.rows {
		ok := true
		for _, s := range slugs {
			if IsEmptyValue(row[s]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

// SortedBy returns a copy of the rows stably sorted ascending by the given
// slugs. Numbers sort before strings; undefined values sort last.
func (t *Table) SortedBy(slugs ...string) []Row {
	out := slices.Clone(t.rows)
	sort.SliceStable(out, func(i, j int) bool {
		for _, s := range slugs {
			if c := CompareValues(out[i][s], out[j][s]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

// Clone returns an independent table with copied rows and the same specs.
// Filter and selection registrations are carried over. Computed functions are
// shared with t, so a function closing over t keeps reading t's state; use
// ReplacePredicate to rebind one.
func (t *Table) Clone() *Table {
	c := New(t.rows, slices.Clone(t.specs), WithLogger(t.logger))
	c.filterSlugs = slices.Clone(t.filterSlugs)
	c.selectionSlugs = slices.Clone(t.selectionSlugs)
	return c
}

// CompareValues orders two cell values: numbers, then strings, then booleans,
// then undefined.
func CompareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case bool:
		y := b.(bool)
		if x != y {
			if !x {
				return -1
			}
			return 1
		}
	}
	return 0
}

func valueRank(v any) int {
	switch v.(type) {
	case float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	case nil:
		return 4
	default:
		return 3
	}
}

// formatSpecType is used by log lines.
func formatSpecType(s ColumnSpec) string {
	if s.Type == coltype.Untyped {
		return "raw"
	}
	return s.Type.String()
}
