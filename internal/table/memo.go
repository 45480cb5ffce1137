package table

// memo.go caches derived values between mutations.
//
// Every mutating method bumps the table's generation. A cached entry is valid
// only for the generation it was computed in, so readers never see results
// that predate the latest mutation and never have to invalidate anything.

type memo struct {
	gen     uint64
	entries map[string]any
}

// touch records a mutation.
func (t *Table) touch() {
	t.gen++
}

// Generation returns a counter that changes on every mutation.
func (t *Table) Generation() uint64 {
	return t.gen
}

// Memoize returns the value cached under key for the current generation,
// computing and storing it on a miss. Callers must not modify the result.
func Memoize[T any](t *Table, key string, compute func() T) T {
	if t.memo.entries == nil || t.memo.gen != t.gen {
		t.memo = memo{gen: t.gen, entries: make(map[string]any)}
	}
	if v, ok := t.memo.entries[key]; ok {
		return v.(T)
	}
	gen := t.gen
	v := compute()
	// compute may have mutated the table; only cache if it didn't.
	if t.gen == gen {
		t.memo.entries[key] = v
	}
	return v
}

// MemoizeView is Memoize for values derived from FilteredRows. Filter
// predicates are re-evaluated on every read, so while any filter column is
// registered the value is recomputed each call.
func MemoizeView[T any](t *Table, key string, compute func() T) T {
	if len(t.filterSlugs) > 0 {
		return compute()
	}
	return Memoize(t, key, compute)
}
