package table

import "sort"

// Well-known slugs shared by entity/time tables.
const (
	EntityNameSlug = "entityName"
	EntityCodeSlug = "entityCode"
	EntityIDSlug   = "entityId"
	YearSlug       = "year"
	DaySlug        = "day"
)

// Row is one observation: a sparse mapping of slug to value.
// Values are float64, string, bool or nil. An absent key and a nil value
// both mean "undefined".
type Row map[string]any

// Clone returns a shallow copy of the row. Values are scalars, so the copy
// shares nothing mutable with r.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Keys returns the row's keys in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the value under slug as a number.
func (r Row) Float(slug string) (float64, bool) {
	switch v := r[slug].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String returns the value under slug when it is a string.
func (r Row) String(slug string) (string, bool) {
	s, ok := r[slug].(string)
	return s, ok
}

// IsEmptyValue reports whether v counts as missing: undefined or "".
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// setValue writes v under slug, removing the key when v is undefined.
func setValue(row Row, slug string, v any) {
	if v == nil {
		delete(row, slug)
		return
	}
	row[slug] = v
}

// cloneRows deep-copies a row sequence.
func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
