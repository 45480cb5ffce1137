package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"gotest.tools/v3/assert"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

func testTable() *table.Table {
	rows := []table.Row{
		{"entityName": "Norway", "year": 2000.0, "gdp": 10.5, "big": true},
		{"entityName": "Sweden", "year": 2000.0, "big": false},
		{"entityName": "France", "year": 2001.0, "gdp": 30.0, "note": "x"},
	}
	specs := []table.ColumnSpec{
		{Slug: "entityName", Type: coltype.Categorical},
		{Slug: "year", Type: coltype.Temporal},
		{Slug: "gdp", Name: "GDP", Type: coltype.Currency, ShortUnit: "$"},
		{Slug: "big"},
		{Slug: "note"},
	}
	return table.New(rows, specs)
}

// =============================================================================
// SUITE 1: FORMATS
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input  string
		want   Format
		wantOk bool
	}{
		{"csv", FormatCSV, true},
		{".parquet", FormatParquet, true},
		{"JSON", FormatJSON, true},
		{"xlsx", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseFormat(tt.input)
		assert.Equal(t, ok, tt.wantOk, tt.input)
		if ok {
			assert.Equal(t, got, tt.want, tt.input)
		}
	}
	assert.Equal(t, FormatParquet.Extension(), "parquet")
	assert.Equal(t, FormatJSON.ContentType(), "application/json")
}

// =============================================================================
// SUITE 2: ARROW & PARQUET
// =============================================================================

func TestToArrow_Schema(t *testing.T) {
	rec, err := ToArrow(testTable(), Options{}, memory.NewGoAllocator())
	assert.NilError(t, err)
	defer rec.Release()

	assert.Equal(t, rec.NumRows(), int64(3))
	schema := rec.Schema()
	assert.Equal(t, schema.Field(0).Type.ID(), arrow.STRING)
	assert.Equal(t, schema.Field(1).Type.ID(), arrow.FLOAT64)
	assert.Equal(t, schema.Field(2).Type.ID(), arrow.FLOAT64)
	assert.Equal(t, schema.Field(3).Type.ID(), arrow.BOOL)
	assert.Equal(t, schema.Field(4).Type.ID(), arrow.STRING)

	name, _ := schema.Field(2).Metadata.GetValue("name")
	assert.Equal(t, name, "GDP")
	unit, _ := schema.Field(2).Metadata.GetValue("shortUnit")
	assert.Equal(t, unit, "$")

	gdp := rec.Column(2).(*array.Float64)
	assert.Equal(t, gdp.Value(0), 10.5)
	assert.Assert(t, gdp.IsNull(1))

	note := rec.Column(4).(*array.String)
	assert.Assert(t, note.IsNull(0))
	assert.Equal(t, note.Value(2), "x")
}

func TestToArrow_UnknownSlug(t *testing.T) {
	_, err := ToArrow(testTable(), Options{Slugs: []string{"missing"}}, memory.NewGoAllocator())
	assert.ErrorContains(t, err, "column not found")
}

func TestWriteParquet_RoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec, err := ToArrow(testTable(), Options{Slugs: []string{"entityName", "gdp"}, RowLimit: 2}, mem)
	assert.NilError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	assert.NilError(t, WriteParquet(&buf, rec))

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	assert.NilError(t, err)
	defer tbl.Release()

	assert.Equal(t, tbl.NumRows(), int64(2))
	assert.Equal(t, tbl.NumCols(), int64(2))
	assert.Equal(t, tbl.Schema().Field(0).Name, "entityName")

	names := tbl.Column(0).Data().Chunk(0).(*array.String)
	assert.Equal(t, names.Value(1), "Sweden")
	gdp := tbl.Column(1).Data().Chunk(0).(*array.Float64)
	assert.Equal(t, gdp.Value(0), 10.5)
	assert.Assert(t, gdp.IsNull(1))
}

// =============================================================================
// SUITE 3: JSON & CSV
// =============================================================================

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	assert.NilError(t, WriteJSON(&buf, testTable(), Options{Slugs: []string{"entityName", "gdp"}}))

	var got []map[string]any
	assert.NilError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.DeepEqual(t, got, []map[string]any{
		{"entityName": "Norway", "gdp": 10.5},
		{"entityName": "Sweden"},
		{"entityName": "France", "gdp": 30.0},
	})
}

func TestWriteCSV_Filtered(t *testing.T) {
	tbl := testTable()
	err := tbl.AddFilterColumn("recent", func(row table.Row, _ int, _ *table.Table) bool {
		y, _ := row.Float("year")
		return y > 2000
	})
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, Write(&buf, tbl, FormatCSV, Options{Slugs: []string{"entityName", "year"}, Filtered: true}))

	assert.Equal(t, buf.String(), strings.Join([]string{"entityName,year", "France,2001", ""}, "\n"))
}

func TestWriteCSV_SelectedIgnoresFilters(t *testing.T) {
	tbl := testTable()
	err := tbl.AddFilterColumn("recent", func(row table.Row, _ int, _ *table.Table) bool {
		y, _ := row.Float("year")
		return y > 2000
	})
	assert.NilError(t, err)
	err = tbl.AddSelectionColumn("nordic", func(row table.Row, _ int, _ *table.Table) bool {
		n, _ := row.String("entityName")
		return n == "Norway" || n == "Sweden"
	})
	assert.NilError(t, err)

	var buf bytes.Buffer
	opts := Options{Slugs: []string{"entityName"}, Selected: true, Filtered: true}
	assert.NilError(t, Write(&buf, tbl, FormatCSV, opts))

	assert.Equal(t, buf.String(), strings.Join([]string{"entityName", "Norway", "Sweden", ""}, "\n"))
}
