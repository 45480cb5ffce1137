package table

import (
	"errors"
	"reflect"
	"testing"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

func sampleRows() []Row {
	return []Row{
		{"entityName": "Norway", "year": 1999.0, "gdp": 10.0},
		{"entityName": "Norway", "year": 2000.0, "gdp": 20.0},
		{"entityName": "Sweden", "year": 1999.0, "gdp": ""},
		{"entityName": "Sweden", "year": 2001.0, "gdp": 40.0},
		{"entityName": "France", "year": 2002.0},
	}
}

func rowNames(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r.String(EntityNameSlug)
	}
	return out
}

// ============================================================================
// Construction Tests
// ============================================================================

func TestNew_ClonesRowsByDefault(t *testing.T) {
	rows := sampleRows()
	tbl := New(rows, nil)

	rows[0]["gdp"] = 999.0

	if got := tbl.Rows()[0]["gdp"]; got != 10.0 {
		t.Errorf("table row aliased caller state: gdp = %v", got)
	}
}

func TestNew_WithoutCloning(t *testing.T) {
	rows := sampleRows()
	tbl := New(rows, nil, WithoutCloning())

	rows[0]["gdp"] = 999.0

	if got := tbl.Rows()[0]["gdp"]; got != 999.0 {
		t.Errorf("expected adopted rows, gdp = %v", got)
	}
}

func TestNew_DetectsSpecs(t *testing.T) {
	tbl := New(sampleRows(), nil)

	want := []string{"entityName", "gdp", "year"}
	if got := tbl.ColumnSlugs(); !reflect.DeepEqual(got, want) {
		t.Errorf("ColumnSlugs() = %v, want %v", got, want)
	}
	if tbl.NumColumns() != 3 {
		t.Errorf("NumColumns() = %d, want 3", tbl.NumColumns())
	}
}

func TestNew_Empty(t *testing.T) {
	tbl := New(nil, nil)
	if !tbl.IsEmpty() {
		t.Error("expected empty table")
	}
	if tbl.Rows() == nil {
		t.Error("Rows() should be non-nil for an empty table")
	}
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestAddSpecs_FirstWriterWins(t *testing.T) {
	tbl := New(sampleRows(), []ColumnSpec{{Slug: "gdp", Name: "GDP", Type: coltype.Currency}})

	gen := tbl.Generation()
	tbl.AddSpecs(ColumnSpec{Slug: "gdp", Name: "Other", Type: coltype.String})

	spec, _ := tbl.Spec("gdp")
	if spec.Name != "GDP" || spec.Type != coltype.Currency {
		t.Errorf("spec changed on re-register: %+v", spec)
	}
	if tbl.Generation() != gen {
		t.Error("no-op AddSpecs should not count as a mutation")
	}
	if tbl.NumColumns() != 1 {
		t.Errorf("NumColumns() = %d, want 1", tbl.NumColumns())
	}
}

func TestDeleteColumnBySlug(t *testing.T) {
	tbl := New(sampleRows(), nil)

	tbl.DeleteColumnBySlug("gdp")

	if tbl.Has("gdp") {
		t.Error("gdp still registered")
	}
	for i, row := range tbl.Rows() {
		if _, ok := row["gdp"]; ok {
			t.Errorf("row %d still has gdp", i)
		}
	}
	if got := tbl.ColumnSlugs(); !reflect.DeepEqual(got, []string{"entityName", "year"}) {
		t.Errorf("ColumnSlugs() = %v", got)
	}
	if c, ok := tbl.Get("year"); !ok || c.Slug() != "year" {
		t.Error("index not rebuilt after delete")
	}

	// Unknown slugs are ignored.
	tbl.DeleteColumnBySlug("missing")
}

func TestMustGet_PanicsOnUnknownSlug(t *testing.T) {
	tbl := New(sampleRows(), nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	tbl.MustGet("missing")
}

func TestCloneAndAddRowsAndDetectColumns(t *testing.T) {
	tbl := New(sampleRows(), nil)
	extra := []Row{{"entityName": "Chile", "year": 2000.0, "population": 15.0}}

	tbl.CloneAndAddRowsAndDetectColumns(extra)
	extra[0]["population"] = 0.0

	if tbl.NumRows() != 6 {
		t.Errorf("NumRows() = %d, want 6", tbl.NumRows())
	}
	spec, ok := tbl.Spec("population")
	if !ok {
		t.Fatal("population not detected")
	}
	if spec.Type != coltype.Untyped {
		t.Errorf("detected type = %v, want Untyped", spec.Type)
	}
	if got := tbl.MustGet("population").Values(); !reflect.DeepEqual(got, []any{15.0}) {
		t.Errorf("population values = %v", got)
	}
}

func TestColumnsBySlug_FreshAfterMutation(t *testing.T) {
	tbl := New(sampleRows(), nil)
	before := tbl.ColumnsBySlug()

	tbl.AddSpecs(ColumnSpec{Slug: "population"})
	after := tbl.ColumnsBySlug()

	if _, ok := before["population"]; ok {
		t.Error("old snapshot should not see new column")
	}
	if _, ok := after["population"]; !ok {
		t.Error("ColumnsBySlug returned a stale result")
	}
}

// ============================================================================
// Computed Column Tests
// ============================================================================

func TestAddFilterColumn_AndComposition(t *testing.T) {
	tbl := New(sampleRows(), nil)

	if err := tbl.AddFilterColumn("all", func(Row, int, *Table) bool { return true }); err != nil {
		t.Fatal(err)
	}
	err := tbl.AddFilterColumn("recent", func(r Row, _ int, _ *Table) bool {
		y, ok := r.Float("year")
		return ok && y >= 2000
	})
	if err != nil {
		t.Fatal(err)
	}

	got := tbl.FilteredRows()
	if len(got) != 3 {
		t.Fatalf("FilteredRows() len = %d, want 3", len(got))
	}
	for _, r := range got {
		if y, _ := r.Float("year"); y < 2000 {
			t.Errorf("row with year %v passed the filter", y)
		}
	}
}

func TestFilteredRows_NoFilters(t *testing.T) {
	tbl := New(sampleRows(), nil)
	if got := len(tbl.FilteredRows()); got != 5 {
		t.Errorf("FilteredRows() len = %d, want 5", got)
	}
}

func TestFilteredRows_ReevaluatesPredicates(t *testing.T) {
	tbl := New(sampleRows(), nil)
	minYear := 2000.0
	_ = tbl.AddFilterColumn("recent", func(r Row, _ int, _ *Table) bool {
		y, _ := r.Float("year")
		return y >= minYear
	})

	if got := len(tbl.FilteredRows()); got != 3 {
		t.Fatalf("FilteredRows() len = %d, want 3", got)
	}

	minYear = 2001
	if got := len(tbl.FilteredRows()); got != 2 {
		t.Errorf("FilteredRows() after predicate change len = %d, want 2", got)
	}
	if got := tbl.Rows()[1]["recent"]; got != false {
		t.Errorf("filter field not rewritten in row: %v", got)
	}
}

func TestAddSelectionColumn_OrComposition(t *testing.T) {
	tbl := New(sampleRows(), nil)

	isEntity := func(name string) PredicateFn {
		return func(r Row, _ int, _ *Table) bool {
			n, _ := r.String(EntityNameSlug)
			return n == name
		}
	}
	_ = tbl.AddSelectionColumn("isNorway", isEntity("Norway"))
	_ = tbl.AddSelectionColumn("isFrance", isEntity("France"))

	want := []string{"Norway", "Norway", "France"}
	if got := rowNames(tbl.SelectedRows()); !reflect.DeepEqual(got, want) {
		t.Errorf("SelectedRows() = %v, want %v", got, want)
	}
}

func TestSelectedRows_NoSelectionColumns(t *testing.T) {
	tbl := New(sampleRows(), nil)
	if got := tbl.SelectedRows(); len(got) != 0 {
		t.Errorf("SelectedRows() = %v, want none", got)
	}
}

func TestSelectionColumn_NotRecomputed(t *testing.T) {
	tbl := New(sampleRows(), nil)
	want := "Norway"
	_ = tbl.AddSelectionColumn("picked", func(r Row, _ int, _ *Table) bool {
		n, _ := r.String(EntityNameSlug)
		return n == want
	})

	want = "Sweden"
	if got := rowNames(tbl.SelectedRows()); !reflect.DeepEqual(got, []string{"Norway", "Norway"}) {
		t.Errorf("selection recomputed without refresh: %v", got)
	}

	if err := tbl.RefreshComputedColumn("picked"); err != nil {
		t.Fatal(err)
	}
	if got := rowNames(tbl.SelectedRows()); !reflect.DeepEqual(got, []string{"Sweden", "Sweden"}) {
		t.Errorf("SelectedRows() after refresh = %v", got)
	}
}

func TestAddNumericComputedColumn(t *testing.T) {
	tbl := New(sampleRows(), nil)

	err := tbl.AddNumericComputedColumn(ColumnSpec{
		Slug: "gdpDoubled",
		Fn: func(r Row, _ int, _ *Table) any {
			v, ok := r.Float("gdp")
			if !ok {
				return nil
			}
			return v * 2
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	spec, _ := tbl.Spec("gdpDoubled")
	if spec.Type != coltype.Numeric {
		t.Errorf("Type = %v, want Numeric", spec.Type)
	}
	if got := tbl.MustGet("gdpDoubled").Values(); !reflect.DeepEqual(got, []any{20.0, 40.0, 80.0}) {
		t.Errorf("Values() = %v", got)
	}
	if _, ok := tbl.Rows()[4]["gdpDoubled"]; ok {
		t.Error("nil result should leave the field undefined")
	}
}

func TestAddComputed_ExistingSlugIsNoop(t *testing.T) {
	tbl := New(sampleRows(), nil)
	calls := 0
	fn := func(Row, int, *Table) bool { calls++; return true }

	_ = tbl.AddFilterColumn("f", fn)
	if err := tbl.AddFilterColumn("f", fn); err != nil {
		t.Fatalf("re-register returned error: %v", err)
	}
	if calls != 5 {
		t.Errorf("predicate ran %d times, want 5", calls)
	}
	if got := tbl.FilterSlugs(); len(got) != 1 {
		t.Errorf("FilterSlugs() = %v, want one entry", got)
	}
}

func TestAddComputed_InvalidSpec(t *testing.T) {
	tbl := New(sampleRows(), nil)

	if err := tbl.AddNumericComputedColumn(ColumnSpec{Slug: "x"}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("missing Fn: err = %v, want ErrInvalidSpec", err)
	}
	if err := tbl.AddFilterColumn("", func(Row, int, *Table) bool { return true }); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("empty slug: err = %v, want ErrInvalidSpec", err)
	}
	if err := tbl.RefreshComputedColumn("missing"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("refresh unknown: err = %v, want ErrColumnNotFound", err)
	}
	if err := tbl.RefreshComputedColumn("gdp"); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("refresh raw: err = %v, want ErrInvalidSpec", err)
	}
}

// ============================================================================
// Row Helper Tests
// ============================================================================

func TestSortedBy(t *testing.T) {
	tbl := New(sampleRows(), nil)

	got := tbl.SortedBy("year")
	years := make([]any, len(got))
	for i, r := range got {
		years[i] = r["year"]
	}
	want := []any{1999.0, 1999.0, 2000.0, 2001.0, 2002.0}
	if !reflect.DeepEqual(years, want) {
		t.Errorf("years = %v, want %v", years, want)
	}
	// Stable: Norway 1999 stays ahead of Sweden 1999.
	if n, _ := got[0].String(EntityNameSlug); n != "Norway" {
		t.Errorf("first row = %s, want Norway", n)
	}
}

func TestRowsWith(t *testing.T) {
	tbl := New(sampleRows(), nil)
	if got := len(tbl.RowsWith("gdp", "year")); got != 3 {
		t.Errorf("RowsWith() len = %d, want 3", got)
	}
}

func TestClone_Independent(t *testing.T) {
	tbl := New(sampleRows(), nil)
	_ = tbl.AddFilterColumn("all", func(Row, int, *Table) bool { return true })

	c := tbl.Clone()
	c.Rows()[0]["gdp"] = 1.0

	if tbl.Rows()[0]["gdp"] != 10.0 {
		t.Error("clone shares rows with original")
	}
	if !reflect.DeepEqual(c.FilterSlugs(), []string{"all"}) {
		t.Errorf("clone FilterSlugs() = %v", c.FilterSlugs())
	}
}

func TestReplacePredicate(t *testing.T) {
	tbl := New(sampleRows(), nil)
	_ = tbl.AddSelectionColumn("norway", func(r Row, _ int, _ *Table) bool {
		n, _ := r.String(EntityNameSlug)
		return n == "Norway"
	})
	_ = tbl.AddFilterColumn("all", func(Row, int, *Table) bool { return true })
	slugsBefore := tbl.ColumnSlugs()

	err := tbl.ReplacePredicate("norway", func(r Row, _ int, _ *Table) bool {
		n, _ := r.String(EntityNameSlug)
		return n == "Sweden"
	})
	if err != nil {
		t.Fatalf("ReplacePredicate() error = %v", err)
	}

	if got := rowNames(tbl.SelectedRows()); !reflect.DeepEqual(got, []string{"Sweden", "Sweden"}) {
		t.Errorf("SelectedRows() = %v, want the new predicate's rows", got)
	}
	if tbl.Rows()[0]["norway"] != false {
		t.Error("column not re-materialized")
	}
	if !reflect.DeepEqual(tbl.ColumnSlugs(), slugsBefore) {
		t.Errorf("ColumnSlugs() = %v, want %v", tbl.ColumnSlugs(), slugsBefore)
	}

	if err := tbl.ReplacePredicate("missing", func(Row, int, *Table) bool { return true }); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("unknown slug err = %v", err)
	}
	if err := tbl.ReplacePredicate("gdp", func(Row, int, *Table) bool { return true }); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("raw column err = %v", err)
	}
	if err := tbl.ReplacePredicate("all", nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil predicate err = %v", err)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b any
		want int
	}{
		{1.0, 2.0, -1},
		{2.0, 1.0, 1},
		{1.0, 1.0, 0},
		{1.0, "a", -1},
		{"a", "b", -1},
		{"b", nil, -1},
		{nil, 3.0, 1},
		{false, true, -1},
		{nil, nil, 0},
	}

	for _, tt := range tests {
		got := CompareValues(tt.a, tt.b)
		if (got < 0) != (tt.want < 0) || (got > 0) != (tt.want > 0) {
			t.Errorf("CompareValues(%v, %v) = %d, want sign of %d", tt.a, tt.b, got, tt.want)
		}
	}
}
