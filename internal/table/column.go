package table

import (
	"sort"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

// Column is a read-only projection of one slug across the table's rows.
// It holds no values of its own; everything is derived from the table's
// current rows.
type Column struct {
	spec  ColumnSpec
	table *Table
}

// Spec returns the column's spec.
func (c *Column) Spec() ColumnSpec { return c.spec }

// Slug returns the column's slug.
func (c *Column) Slug() string { return c.spec.Slug }

// Name returns the display name.
func (c *Column) Name() string { return c.spec.DisplayName() }

// Type returns the semantic type.
func (c *Column) Type() coltype.Type { return c.spec.Type }

// Unit returns the long unit.
func (c *Column) Unit() string { return c.spec.Unit }

// ShortUnit returns the short unit.
func (c *Column) ShortUnit() string { return c.spec.ShortUnit }

// FormatValue renders v under the column's type.
func (c *Column) FormatValue(v any) string {
	return c.spec.Type.FormatValue(v, c.spec.ShortUnit)
}

// memoKey namespaces a cache entry to this column.
func (c *Column) memoKey(name string) string {
	return "column:" + c.spec.Slug + ":" + name
}

// cached memoizes per column. Filter columns are rewritten on every read of
// the filtered view, so their projections are never cached.
func cached[T any](c *Column, name string, compute func() T) T {
	for _, s := range c.table.filterSlugs {
		if s == c.spec.Slug {
			return compute()
		}
	}
	return Memoize(c.table, c.memoKey(name), compute)
}

// Rows returns the rows where the column's value is neither undefined nor "".
func (c *Column) Rows() []Row {
	return cached(c, "rows", func() []Row {
		var out []Row
		for _, row := range c.table.rows {
			if !IsEmptyValue(row[c.spec.Slug]) {
				out = append(out, row)
			}
		}
		return out
	})
}

// IsEmpty reports whether the column has no values.
func (c *Column) IsEmpty() bool {
	return len(c.Rows()) == 0
}

// Values returns the column's non-empty values in row order.
func (c *Column) Values() []any {
	return cached(c, "values", func() []any {
		rows := c.Rows()
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = row[c.spec.Slug]
		}
		return out
	})
}

// ValuesUniq returns Values with duplicates removed, keeping first occurrences.
func (c *Column) ValuesUniq() []any {
	return cached(c, "valuesUniq", func() []any {
		seen := make(map[any]bool)
		var out []any
		for _, v := range c.Values() {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
		return out
	})
}

// NumericValues returns the values that are numbers, in row order.
func (c *Column) NumericValues() []float64 {
	return cached(c, "numericValues", func() []float64 {
		var out []float64
		for _, v := range c.Values() {
			if f, ok := v.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	})
}

// MinValue returns the smallest numeric value.
func (c *Column) MinValue() (float64, bool) {
	vals := c.NumericValues()
	if len(vals) == 0 {
		return 0, false
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min, true
}

// MaxValue returns the largest numeric value.
func (c *Column) MaxValue() (float64, bool) {
	vals := c.NumericValues()
	if len(vals) == 0 {
		return 0, false
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max, true
}

// LatestValuesMap maps each entity name to the last value seen for it in row
// order. Rows are not sorted by time first.
func (c *Column) LatestValuesMap() map[string]any {
	return cached(c, "latestValuesMap", func() map[string]any {
		m := make(map[string]any)
		for _, row := range c.Rows() {
			name, ok := row.String(EntityNameSlug)
			if !ok {
				continue
			}
			m[name] = row[c.spec.Slug]
		}
		return m
	})
}

// LatestValueForEntity returns the last value seen for the entity.
func (c *Column) LatestValueForEntity(name string) (any, bool) {
	v, ok := c.LatestValuesMap()[name]
	return v, ok
}

// SortedUniqNonEmptyStringVals returns the distinct non-empty values as
// sorted strings.
func (c *Column) SortedUniqNonEmptyStringVals() []string {
	return cached(c, "sortedUniqStrings", func() []string {
		seen := make(map[string]bool)
		var out []string
		for _, v := range c.Values() {
			s := coltype.Stringify(v)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		sort.Strings(out)
		return out
	})
}

// EntityNamesUniq returns the names of entities having a value in this
// column, in order of first appearance.
func (c *Column) EntityNamesUniq() []string {
	return cached(c, "entityNamesUniq", func() []string {
		seen := make(map[string]bool)
		var out []string
		for _, row := range c.Rows() {
			name, ok := row.String(EntityNameSlug)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
		return out
	})
}

// EntityNamesUniqSet is EntityNamesUniq as a set.
func (c *Column) EntityNamesUniqSet() map[string]struct{} {
	return cached(c, "entityNamesUniqSet", func() map[string]struct{} {
		names := c.EntityNamesUniq()
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		return set
	})
}
