package owid

// legacy.go ingests the legacy "variables + entityKey" payload.
//
// The payload holds one block per variable with parallel arrays of entity
// ids, times and values. Each observation becomes a row; rows that share an
// entity and a time are merged so that every variable ends up as a column of
// the same row.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

// DefaultZeroDay is the epoch day offsets are expressed against.
const DefaultZeroDay = "2020-01-21"

// LegacyPayload is the legacy wide-format payload.
type LegacyPayload struct {
	Variables map[string]LegacyVariable `json:"variables"`
	EntityKey map[string]LegacyEntity   `json:"entityKey"`
}

// LegacyVariable is one variable block. Entities, Years and Values are
// parallel arrays.
type LegacyVariable struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Unit        string        `json:"unit"`
	ShortUnit   string        `json:"shortUnit"`
	Description string        `json:"description"`
	Display     LegacyDisplay `json:"display"`
	Entities    []int         `json:"entities"`
	Years       []int         `json:"years"`
	Values      []any         `json:"values"`
}

// LegacyDisplay holds a variable's display overrides.
type LegacyDisplay struct {
	Name                 string `json:"name"`
	Unit                 string `json:"unit"`
	ShortUnit            string `json:"shortUnit"`
	YearIsDay            bool   `json:"yearIsDay"`
	ZeroDay              string `json:"zeroDay"`
	EntityAnnotationsMap string `json:"entityAnnotationsMap"`
}

// LegacyEntity describes one entity of the entity key.
type LegacyEntity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ParseLegacyJSON decodes a legacy payload.
func ParseLegacyJSON(data []byte) (*LegacyPayload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("legacy payload: %w", table.ErrEmptyInput)
	}
	var p LegacyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode legacy payload: %w", err)
	}
	return &p, nil
}

// ReadLegacyJSON reads and decodes a legacy payload from r.
func ReadLegacyJSON(r io.Reader) (*LegacyPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read legacy payload: %w", err)
	}
	return ParseLegacyJSON(data)
}

// FromLegacyJSON decodes data and builds a Table from it.
func FromLegacyJSON(data []byte, opts ...table.Option) (*Table, error) {
	p, err := ParseLegacyJSON(data)
	if err != nil {
		return nil, err
	}
	return FromLegacy(p, opts...)
}

// VariableSlug returns the column slug of a variable: "<id>-<slugified name>".
func VariableSlug(v LegacyVariable) string {
	return strconv.Itoa(v.ID) + "-" + table.Slugify(v.Name)
}

// AnnotationsSlug returns the slug of a variable's annotation column.
func AnnotationsSlug(variableSlug string) string {
	return variableSlug + "-annotations"
}

// FromLegacy converts a legacy payload into a Table. Variables are visited
// in id order. Merged rows are sorted by year then day only; entity order
// within a time is first appearance.
func FromLegacy(p *LegacyPayload, opts ...table.Option) (*Table, error) {
	if p == nil {
		return nil, fmt.Errorf("legacy payload: %w", table.ErrEmptyInput)
	}

	vars := make([]LegacyVariable, 0, len(p.Variables))
	for key, v := range p.Variables {
		if v.ID == 0 {
			if id, err := strconv.Atoi(key); err == nil {
				v.ID = id
			}
		}
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].ID < vars[j].ID })

	var (
		raw     []table.Row
		specs   []table.ColumnSpec
		hasYear bool
		hasDay  bool
		hasCode bool
		skipped int
	)

	for _, v := range vars {
		slug := VariableSlug(v)
		timeSlug := table.YearSlug
		if v.Display.YearIsDay {
			timeSlug = table.DaySlug
			hasDay = true
		} else {
			hasYear = true
		}

		offset, err := epochOffset(v.Display)
		if err != nil {
			return nil, fmt.Errorf("variable %d: %w", v.ID, err)
		}

		annotations := parseAnnotations(v.Display.EntityAnnotationsMap)
		annotationsSlug := ""
		if len(annotations) > 0 {
			annotationsSlug = AnnotationsSlug(slug)
		}

		n := min(len(v.Entities), len(v.Years), len(v.Values))
		numeric := true
		for i := 0; i < n; i++ {
			entity, ok := p.EntityKey[strconv.Itoa(v.Entities[i])]
			if !ok {
				skipped++
				continue
			}

			value := normalizeValue(v.Values[i])
			if _, isNum := value.(float64); !isNum && value != nil {
				numeric = false
			}

			row := table.Row{
				timeSlug:             float64(v.Years[i] + offset),
				table.EntityNameSlug: entity.Name,
				table.EntityIDSlug:   float64(v.Entities[i]),
			}
			if value != nil {
				row[slug] = value
			}
			if entity.Code != "" {
				row[table.EntityCodeSlug] = entity.Code
				hasCode = true
			}
			if text, ok := annotations[entity.Name]; ok {
				row[annotationsSlug] = text
			}
			raw = append(raw, row)
		}

		spec := table.ColumnSpec{
			Slug:                  slug,
			Name:                  firstNonEmpty(v.Display.Name, v.Name),
			Unit:                  firstNonEmpty(v.Display.Unit, v.Unit),
			ShortUnit:             firstNonEmpty(v.Display.ShortUnit, v.ShortUnit),
			Type:                  coltype.Numeric,
			AnnotationsColumnSlug: annotationsSlug,
		}
		if !numeric {
			spec.Type = coltype.String
		}
		specs = append(specs, spec)
		if annotationsSlug != "" {
			specs = append(specs, table.ColumnSpec{
				Slug: annotationsSlug,
				Name: spec.Name + " (annotations)",
				Type: coltype.String,
			})
		}
	}

	head := []table.ColumnSpec{{Slug: table.EntityNameSlug}, {Slug: table.EntityIDSlug}}
	if hasCode {
		head = append(head, table.ColumnSpec{Slug: table.EntityCodeSlug})
	}
	if hasYear {
		head = append(head, table.ColumnSpec{Slug: table.YearSlug})
	}
	if hasDay {
		head = append(head, table.ColumnSpec{Slug: table.DaySlug})
	}

	rows := mergeRows(raw)
	t := New(rows, append(head, specs...), append([]table.Option{table.WithoutCloning()}, opts...)...)
	t.Logger().Debug("legacy variables merged",
		"variables", len(vars),
		"observations", len(raw),
		"rows", len(rows),
		"skipped", skipped,
	)
	return t, nil
}

// mergeRows shallow-merges rows sharing an entity and time, then stably
// sorts by year and day. Undefined times sort last.
func mergeRows(raw []table.Row) []table.Row {
	index := make(map[string]int)
	var merged []table.Row
	for _, row := range raw {
		key := mergeKey(row)
		if i, ok := index[key]; ok {
			for k, v := range row {
				merged[i][k] = v
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, row)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if c := table.CompareValues(merged[i][table.YearSlug], merged[j][table.YearSlug]); c != 0 {
			return c < 0
		}
		return table.CompareValues(merged[i][table.DaySlug], merged[j][table.DaySlug]) < 0
	})
	return merged
}

// mergeKey is "year:<T> <entityName>" or "day:<T> <entityName>".
func mergeKey(row table.Row) string {
	name, _ := row.String(table.EntityNameSlug)
	if v, ok := row[table.YearSlug]; ok {
		return "year:" + coltype.Stringify(v) + " " + name
	}
	return "day:" + coltype.Stringify(row[table.DaySlug]) + " " + name
}

// epochOffset returns the whole number of days to add to a daily variable's
// values to express them against DefaultZeroDay.
func epochOffset(d LegacyDisplay) (int, error) {
	if !d.YearIsDay || d.ZeroDay == "" || d.ZeroDay == DefaultZeroDay {
		return 0, nil
	}
	zero, err := parseDay(d.ZeroDay)
	if err != nil {
		return 0, err
	}
	def, err := parseDay(DefaultZeroDay)
	if err != nil {
		return 0, err
	}
	return int(math.Round(zero.Sub(def).Hours() / 24)), nil
}

func parseDay(s string) (time.Time, error) {
	var d pgtype.Date
	if err := d.Scan(s); err != nil || !d.Valid {
		return time.Time{}, fmt.Errorf("invalid zeroDay %q", s)
	}
	return d.Time, nil
}

// parseAnnotations reads "Entity: text" lines into a map.
func parseAnnotations(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		name, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(text)
	}
	return out
}

// normalizeValue maps decoded JSON values onto cell values. Numbers become
// float64, strings stay strings and anything else is undefined.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case string:
		return x
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
