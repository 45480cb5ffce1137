package table

import "github.com/JonMunkholm/grapher/internal/coltype"

// ColumnFn derives a column value from a row. index is the row's position in
// the table and t is the owning table.
type ColumnFn func(row Row, index int, t *Table) any

// PredicateFn is a boolean ColumnFn used by filter and selection columns.
type PredicateFn func(row Row, index int, t *Table) bool

// ColumnSpec declares one column.
type ColumnSpec struct {
	Slug      string       // Stable unique identifier
	Name      string       // Display name; defaults to Slug
	Type      coltype.Type // Semantic type, drives formatting
	Unit      string
	ShortUnit string

	// Fn derives the column's values. Nil for raw columns.
	Fn ColumnFn

	// AnnotationsColumnSlug points at a sibling column holding free-text
	// annotations for this column's values.
	AnnotationsColumnSlug string
}

// DisplayName returns Name, falling back to Slug.
func (s ColumnSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Slug
}

// IsComputed reports whether the column's values come from Fn.
func (s ColumnSpec) IsComputed() bool {
	return s.Fn != nil
}

// DetectSpecs builds untyped specs for every key found in rows, in order of
// first appearance. Keys within one row are visited in sorted order since
// rows have no intrinsic key order.
func DetectSpecs(rows []Row) []ColumnSpec {
	seen := make(map[string]bool)
	var specs []ColumnSpec
	for _, row := range rows {
		for _, k := range row.Keys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			specs = append(specs, ColumnSpec{Slug: k})
		}
	}
	return specs
}
