package table

// computed.go implements computed columns and the filter/selection views.
//
// All computed columns are materialized eagerly at registration: fn runs over
// every current row and its result is written into the row. Selection and
// numeric columns are not recomputed afterwards unless RefreshComputedColumn
// is called. Filter columns are also re-evaluated, and rewritten in place, on
// every call to FilteredRows.

import (
	"fmt"
	"slices"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

// AddFilterColumn registers a boolean column combined with the other filter
// columns by AND in FilteredRows. Registering a taken slug is a no-op.
func (t *Table) AddFilterColumn(slug string, fn PredicateFn) error {
	added, err := t.addComputed(ColumnSpec{Slug: slug, Type: coltype.Boolean, Fn: predicateColumn(fn)})
	if added {
		t.filterSlugs = append(t.filterSlugs, slug)
		t.touch()
	}
	return err
}

// AddSelectionColumn registers a boolean column combined with the other
// selection columns by OR in IsSelected. Registering a taken slug is a no-op.
func (t *Table) AddSelectionColumn(slug string, fn PredicateFn) error {
	added, err := t.addComputed(ColumnSpec{Slug: slug, Type: coltype.Boolean, Fn: predicateColumn(fn)})
	if added {
		t.selectionSlugs = append(t.selectionSlugs, slug)
		t.touch()
	}
	return err
}

// AddNumericComputedColumn registers spec and materializes spec.Fn over every
// row. spec.Type defaults to Numeric.
func (t *Table) AddNumericComputedColumn(spec ColumnSpec) error {
	if spec.Type == coltype.Untyped {
		spec.Type = coltype.Numeric
	}
	_, err := t.addComputed(spec)
	return err
}

// addComputed registers and materializes spec. It reports false without error
// when the slug is already taken.
func (t *Table) addComputed(spec ColumnSpec) (bool, error) {
	if spec.Slug == "" {
		return false, fmt.Errorf("%w: empty slug", ErrInvalidSpec)
	}
	if spec.Fn == nil {
		return false, fmt.Errorf("%w: computed column %q has no function", ErrInvalidSpec, spec.Slug)
	}
	if t.Has(spec.Slug) {
		t.logger.Debug("computed column already registered", "slug", spec.Slug)
		return false, nil
	}

	t.AddSpecs(spec)
	t.materialize(spec)
	t.logger.Debug("computed column materialized",
		"slug", spec.Slug,
		"type", formatSpecType(spec),
		"rows", len(t.rows),
	)
	return true, nil
}

// materialize writes spec.Fn's result into every row.
func (t *Table) materialize(spec ColumnSpec) {
	values := make([]any, len(t.rows))
	for i, row := range t.rows {
		values[i] = spec.Fn(row, i, t)
	}
	for i, row := range t.rows {
		setValue(row, spec.Slug, values[i])
	}
	t.touch()
}

// RefreshComputedColumn re-runs a computed column's function over the current
// rows.
func (t *Table) RefreshComputedColumn(slug string) error {
	spec, ok := t.Spec(slug)
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, slug)
	}
	if spec.Fn == nil {
		return fmt.Errorf("%w: %q is not computed", ErrInvalidSpec, slug)
	}
	t.materialize(spec)
	return nil
}

// ReplacePredicate swaps the predicate of a filter or selection column and
// re-materializes it. The column keeps its position.
func (t *Table) ReplacePredicate(slug string, fn PredicateFn) error {
	i, ok := t.index[slug]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, slug)
	}
	if fn == nil {
		return fmt.Errorf("%w: predicate for %q is nil", ErrInvalidSpec, slug)
	}
	if !slices.Contains(t.filterSlugs, slug) && !slices.Contains(t.selectionSlugs, slug) {
		return fmt.Errorf("%w: %q is not a filter or selection column", ErrInvalidSpec, slug)
	}
	t.specs[i].Fn = predicateColumn(fn)
	t.materialize(t.specs[i])
	return nil
}

func predicateColumn(fn PredicateFn) ColumnFn {
	if fn == nil {
		return nil
	}
	return func(row Row, index int, t *Table) any {
		return fn(row, index, t)
	}
}

// ----------------------------------------------------------------------------
// Views
// ----------------------------------------------------------------------------

// FilterSlugs returns the registered filter columns in registration order.
func (t *Table) FilterSlugs() []string {
	return slices.Clone(t.filterSlugs)
}

// SelectionSlugs returns the registered selection columns in registration order.
func (t *Table) SelectionSlugs() []string {
	return slices.Clone(t.selectionSlugs)
}

// FilteredRows returns the rows passing every filter column. Each call
// re-evaluates every filter predicate over every row and rewrites the row's
// filter fields with the fresh result. With no filter columns, all rows pass.
func (t *Table) FilteredRows() []Row {
	if len(t.filterSlugs) == 0 {
		return t.rows
	}

	fns := make([]ColumnFn, len(t.filterSlugs))
	for i, slug := range t.filterSlugs {
		spec, _ := t.Spec(slug)
		fns[i] = spec.Fn
	}

	out := make([]Row, 0, len(t.rows))
	for i, row := range t.rows {
		pass := true
		for j, slug := range t.filterSlugs {
			v := fns[j](row, i, t)
			row[slug] = v
			if b, _ := v.(bool); !b {
				pass = false
			}
		}
		if pass {
			out = append(out, row)
		}
	}
	return out
}

// IsSelected reports whether any selection column holds true for row.
// With no selection columns nothing is selected.
func (t *Table) IsSelected(row Row) bool {
	for _, slug := range t.selectionSlugs {
		if b, _ := row[slug].(bool); b {
			return true
		}
	}
	return false
}

// SelectedRows returns the rows for which IsSelected holds.
func (t *Table) SelectedRows() []Row {
	return Memoize(t, "selectedRows", func() []Row {
		var out []Row
		if len(t.selectionSlugs) == 0 {
			return out
		}
		for _, row := range t.rows {
			if t.IsSelected(row) {
				out = append(out, row)
			}
		}
		return out
	})
}
