// Package export writes tables out as CSV, JSON rows, Arrow records and
// Parquet files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

// Format is a supported export format.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatParquet
)

// ParseFormat maps a file extension or format name ("csv", ".parquet") to a
// Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, true
	case "json":
		return FormatJSON, true
	case "parquet":
		return FormatParquet, true
	default:
		return 0, false
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension of the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return "csv"
	}
}

// Options selects what is exported.
type Options struct {
	Slugs    []string // all registered columns when empty
	RowLimit int      // 0 means no limit
	Filtered bool     // export the filtered view instead of every row
	Selected bool     // export the selected rows instead; filter columns do not apply
}

func (o Options) slugs(t *table.Table) []string {
	if len(o.Slugs) > 0 {
		return o.Slugs
	}
	return t.ColumnSlugs()
}

func (o Options) rows(t *table.Table) []table.Row {
	rows := t.Rows()
	switch {
	case o.Selected:
		rows = t.SelectedRows()
	case o.Filtered:
		rows = t.FilteredRows()
	}
	if o.RowLimit > 0 && o.RowLimit < len(rows) {
		rows = rows[:o.RowLimit]
	}
	return rows
}

// Write exports t to w in the given format.
func Write(w io.Writer, t *table.Table, f Format, opts Options) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t, opts)
	case FormatJSON:
		return WriteJSON(w, t, opts)
	case FormatParquet:
		rec, err := ToArrow(t, opts, memory.DefaultAllocator)
		if err != nil {
			return err
		}
		defer rec.Release()
		return WriteParquet(w, rec)
	default:
		return fmt.Errorf("unsupported export format %d", f)
	}
}

// WriteCSV writes a header of slugs followed by one record per row.
func WriteCSV(w io.Writer, t *table.Table, opts Options) error {
	if opts.Filtered || opts.Selected {
		// The filtered view has no delimited writer of its own.
		view := table.New(opts.rows(t), nil, table.WithoutCloning(), table.WithLogger(t.Logger()))
		return view.WriteDelimited(w, table.DelimitedOptions{Slugs: opts.slugs(t)})
	}
	return t.WriteDelimited(w, table.DelimitedOptions{
		Slugs:    opts.slugs(t),
		RowLimit: opts.RowLimit,
	})
}

// WriteJSON writes the rows as a JSON array of objects. Undefined values are
// left out of each object.
func WriteJSON(w io.Writer, t *table.Table, opts Options) error {
	slugs := opts.slugs(t)
	rows := opts.rows(t)

	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		rec := make(map[string]any, len(slugs))
		for _, slug := range slugs {
			if v, ok := row[slug]; ok && v != nil {
				rec[slug] = v
			}
		}
		records[i] = rec
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ToArrow builds an Arrow record from the table. Numeric and temporal columns
// become float64, boolean columns bool and everything else utf8. Untyped
// columns take the type all their values share, falling back to utf8.
// Undefined values and values that do not fit the column type are null.
// The caller must Release the record.
func ToArrow(t *table.Table, opts Options, mem memory.Allocator) (arrow.Record, error) {
	slugs := opts.slugs(t)
	rows := opts.rows(t)

	fields := make([]arrow.Field, len(slugs))
	for i, slug := range slugs {
		spec, ok := t.Spec(slug)
		if !ok {
			return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, slug)
		}
		fields[i] = arrow.Field{
			Name:     slug,
			Type:     arrowType(spec, rows),
			Nullable: true,
			Metadata: fieldMetadata(spec),
		}
	}

	schema := arrow.NewSchema(fields, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, slug := range slugs {
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			for _, row := range rows {
				if v, ok := row.Float(slug); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		case *array.BooleanBuilder:
			for _, row := range rows {
				if v, ok := row[slug].(bool); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		case *array.StringBuilder:
			for _, row := range rows {
				if v := row[slug]; v != nil {
					fb.Append(coltype.Stringify(v))
				} else {
					fb.AppendNull()
				}
			}
		}
	}

	return b.NewRecord(), nil
}

func arrowType(spec table.ColumnSpec, rows []table.Row) arrow.DataType {
	switch {
	case spec.Type.IsNumeric(), spec.Type == coltype.Temporal:
		return arrow.PrimitiveTypes.Float64
	case spec.Type == coltype.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case spec.Type != coltype.Untyped:
		return arrow.BinaryTypes.String
	}

	var numbers, bools, others int
	for _, row := range rows {
		switch row[spec.Slug].(type) {
		case nil:
		case float64:
			numbers++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others == 0 && bools == 0 && numbers > 0:
		return arrow.PrimitiveTypes.Float64
	case others == 0 && numbers == 0 && bools > 0:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func fieldMetadata(spec table.ColumnSpec) arrow.Metadata {
	keys := []string{"name", "type"}
	values := []string{spec.DisplayName(), spec.Type.String()}
	if spec.Unit != "" {
		keys = append(keys, "unit")
		values = append(values, spec.Unit)
	}
	if spec.ShortUnit != "" {
		keys = append(keys, "shortUnit")
		values = append(values, spec.ShortUnit)
	}
	return arrow.NewMetadata(keys, values)
}

// WriteParquet writes rec to w as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, rec arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record to parquet: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
