package table

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

func TestColumn_RowsExcludeEmpty(t *testing.T) {
	tbl := New(sampleRows(), nil)

	for _, c := range tbl.ColumnsAsArray() {
		var want []Row
		for _, r := range tbl.Rows() {
			v, ok := r[c.Slug()]
			if ok && v != nil && v != "" {
				want = append(want, r)
			}
		}
		if got := c.Rows(); !reflect.DeepEqual(got, want) {
			t.Errorf("%s.Rows() = %v, want %v", c.Slug(), got, want)
		}
	}
}

func TestColumn_RowsFreshAfterMutation(t *testing.T) {
	tbl := New(sampleRows(), nil)
	gdp := tbl.MustGet("gdp")

	if got := len(gdp.Rows()); got != 3 {
		t.Fatalf("Rows() len = %d, want 3", got)
	}

	tbl.CloneAndAddRowsAndDetectColumns([]Row{{"entityName": "Chile", "gdp": 5.0}})
	if got := len(gdp.Rows()); got != 4 {
		t.Errorf("Rows() after append len = %d, want 4", got)
	}
}

func TestColumn_Values(t *testing.T) {
	tbl := New(sampleRows(), nil)
	names := tbl.MustGet("entityName")

	if got := names.ValuesUniq(); !reflect.DeepEqual(got, []any{"Norway", "Sweden", "France"}) {
		t.Errorf("ValuesUniq() = %v", got)
	}
	if got := names.SortedUniqNonEmptyStringVals(); !reflect.DeepEqual(got, []string{"France", "Norway", "Sweden"}) {
		t.Errorf("SortedUniqNonEmptyStringVals() = %v", got)
	}

	gdp := tbl.MustGet("gdp")
	if got := gdp.NumericValues(); !reflect.DeepEqual(got, []float64{10, 20, 40}) {
		t.Errorf("NumericValues() = %v", got)
	}
	if min, ok := gdp.MinValue(); !ok || min != 10 {
		t.Errorf("MinValue() = %v, %v", min, ok)
	}
	if max, ok := gdp.MaxValue(); !ok || max != 40 {
		t.Errorf("MaxValue() = %v, %v", max, ok)
	}
}

func TestColumn_LatestValues(t *testing.T) {
	tbl := New(sampleRows(), nil)
	gdp := tbl.MustGet("gdp")

	want := map[string]any{"Norway": 20.0, "Sweden": 40.0}
	if got := gdp.LatestValuesMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("LatestValuesMap() = %v, want %v", got, want)
	}
	if v, ok := gdp.LatestValueForEntity("Norway"); !ok || v != 20.0 {
		t.Errorf("LatestValueForEntity(Norway) = %v, %v", v, ok)
	}
	if _, ok := gdp.LatestValueForEntity("France"); ok {
		t.Error("France has no gdp value")
	}
}

func TestColumn_EntityNamesUniq(t *testing.T) {
	tbl := New(sampleRows(), nil)

	if got := tbl.MustGet("gdp").EntityNamesUniq(); !reflect.DeepEqual(got, []string{"Norway", "Sweden"}) {
		t.Errorf("EntityNamesUniq() = %v", got)
	}
	set := tbl.MustGet("year").EntityNamesUniqSet()
	if len(set) != 3 {
		t.Errorf("EntityNamesUniqSet() = %v", set)
	}
}

func TestColumn_EmptyColumn(t *testing.T) {
	tbl := New(sampleRows(), []ColumnSpec{{Slug: "population"}})
	c := tbl.MustGet("population")

	if !c.IsEmpty() {
		t.Error("expected empty column")
	}
	if _, ok := c.MinValue(); ok {
		t.Error("MinValue() on empty column should report false")
	}
}

func TestColumn_FormatValue(t *testing.T) {
	tbl := New(nil, []ColumnSpec{
		{Slug: "share", Type: coltype.DecimalPercentage},
		{Slug: "gdp", Type: coltype.Currency, Unit: "dollars", ShortUnit: "$"},
	})

	if got := tbl.MustGet("share").FormatValue(0.256); got != "26%" {
		t.Errorf("share = %q, want %q", got, "26%")
	}
	if got := tbl.MustGet("gdp").FormatValue(1500.0); got != "$1,500" {
		t.Errorf("gdp = %q, want %q", got, "$1,500")
	}
	if got := tbl.MustGet("gdp").Name(); got != "gdp" {
		t.Errorf("Name() = %q, want slug fallback", got)
	}
}
