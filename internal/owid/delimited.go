package owid

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

// requiredHeaders must be present for strict ingestion.
var requiredHeaders = []string{table.EntityNameSlug, table.EntityCodeSlug, table.EntityIDSlug}

// FromDelimited builds a Table from delimited text. It fails with
// table.ErrMissingColumns, naming every missing header, when the entity
// headers are absent.
func FromDelimited(text string, delimiter rune, opts ...table.Option) (*Table, error) {
	return ReadDelimited(strings.NewReader(text), delimiter, opts...)
}

// ReadDelimited is FromDelimited over a reader.
//
// Columns whose non-empty cells all parse as numbers hold float64 values;
// entity name and code always stay text. Unparseable cells in a text column
// are kept as written.
func ReadDelimited(r io.Reader, delimiter rune, opts ...table.Option) (*Table, error) {
	d, err := table.ParseDelimited(r, delimiter)
	if err != nil {
		return nil, err
	}
	if err := validateHeaders(d); err != nil {
		return nil, err
	}

	for i, spec := range d.Specs {
		if spec.Slug == table.EntityNameSlug || spec.Slug == table.EntityCodeSlug {
			continue
		}
		if !allNumeric(d.Rows, spec.Slug) {
			continue
		}
		for _, row := range d.Rows {
			if s, ok := row.String(spec.Slug); ok {
				row[spec.Slug], _ = table.ParseNumber(s)
			}
		}
		if _, known := wellKnownSpecs[spec.Slug]; !known && spec.Type == coltype.Untyped {
			d.Specs[i].Type = coltype.Numeric
		}
	}

	return New(d.Rows, d.Specs, append([]table.Option{table.WithoutCloning()}, opts...)...), nil
}

// validateHeaders reports every required header the document lacks.
func validateHeaders(d *table.Delimited) error {
	var missing []string
	for _, slug := range requiredHeaders {
		if !d.Has(slug) {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", table.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// allNumeric reports whether every value under slug parses as a number.
// A column with no values is not numeric.
func allNumeric(rows []table.Row, slug string) bool {
	seen := false
	for _, row := range rows {
		s, ok := row.String(slug)
		if !ok {
			continue
		}
		if _, ok := table.ParseNumber(s); !ok {
			return false
		}
		seen = true
	}
	return seen
}
