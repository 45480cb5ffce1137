package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/grapher/internal/coltype"
)

// DelimitedOptions controls WriteDelimited.
type DelimitedOptions struct {
	Slugs     []string // columns to write; all registered columns when empty
	RowLimit  int      // 0 means no limit
	Delimiter rune     // ',' when zero
}

// WriteDelimited writes a header of slugs followed by one record per row.
// Missing values are written as "".
func (t *Table) WriteDelimited(w io.Writer, opts DelimitedOptions) error {
	slugs := opts.Slugs
	if len(slugs) == 0 {
		slugs = t.ColumnSlugs()
	}

	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(slugs); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows := t.rows
	if opts.RowLimit > 0 && opts.RowLimit < len(rows) {
		rows = rows[:opts.RowLimit]
	}

	record := make([]string, len(slugs))
	for i, row := range rows {
		for j, slug := range slugs {
			record[j] = coltype.Stringify(row[slug])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ToDelimited is WriteDelimited into a string.
func (t *Table) ToDelimited(opts DelimitedOptions) (string, error) {
	var b strings.Builder
	if err := t.WriteDelimited(&b, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Delimited is a parsed delimited document: one untyped spec per header
// column and one sparse row per record.
type Delimited struct {
	Specs []ColumnSpec
	Rows  []Row
}

// Has reports whether a header slugified to slug.
func (d *Delimited) Has(slug string) bool {
	for _, s := range d.Specs {
		if s.Slug == slug {
			return true
		}
	}
	return false
}

// ParseDelimited reads a header row and records from r. Header cells are
// slugified case-preserving and keep the original text as the column name.
// Cells stay strings; empty cells are left out of the row.
func ParseDelimited(r io.Reader, delimiter rune) (*Delimited, error) {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Delimited{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	d := &Delimited{}
	slugs := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		slug := SlugifySameCase(name)
		slugs[i] = slug
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		d.Specs = append(d.Specs, ColumnSpec{Slug: slug, Name: name})
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		row := make(Row, len(record))
		for i, cell := range record {
			if i >= len(slugs) || slugs[i] == "" || cell == "" {
				continue
			}
			if _, dup := row[slugs[i]]; dup {
				continue
			}
			row[slugs[i]] = cell
		}
		d.Rows = append(d.Rows, row)
	}

	return d, nil
}

// FromDelimited builds an untyped table from delimited text.
func FromDelimited(text string, delimiter rune, opts ...Option) (*Table, error) {
	d, err := ParseDelimited(strings.NewReader(text), delimiter)
	if err != nil {
		return nil, err
	}
	return New(d.Rows, d.Specs, append([]Option{WithoutCloning()}, opts...)...), nil
}
