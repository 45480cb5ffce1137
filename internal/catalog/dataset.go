package catalog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/grapher/internal/owid"
)

// SourceFormat identifies how a dataset's payload is encoded.
type SourceFormat string

const (
	SourceLegacyJSON SourceFormat = "legacy-json"
	SourceDelimited  SourceFormat = "delimited"
)

// Dataset is a loaded table plus its catalog metadata. The table is not safe
// for concurrent use, so every access goes through With.
type Dataset struct {
	ID       uuid.UUID
	Key      string
	Label    string
	Source   string
	Format   SourceFormat
	LoadedAt time.Time

	mu    sync.Mutex
	table *owid.Table
}

// NewDataset wraps t under key with a fresh id.
func NewDataset(key, label string, t *owid.Table) *Dataset {
	if label == "" {
		label = key
	}
	return &Dataset{
		ID:       uuid.New(),
		Key:      key,
		Label:    label,
		LoadedAt: time.Now().UTC(),
		table:    t,
	}
}

// With runs fn with exclusive access to the dataset's table.
func (d *Dataset) With(fn func(t *owid.Table) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.table)
}

// ColumnInfo describes one column of a dataset.
type ColumnInfo struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit,omitempty"`
	ShortUnit   string `json:"shortUnit,omitempty"`
	Annotations string `json:"annotationsSlug,omitempty"`
	Values      int    `json:"values"`
}

// Info is a snapshot of a dataset's shape.
type Info struct {
	ID       uuid.UUID    `json:"id"`
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Source   string       `json:"source,omitempty"`
	Format   SourceFormat `json:"format,omitempty"`
	LoadedAt time.Time    `json:"loadedAt"`
	Rows     int          `json:"rows"`
	Columns  []ColumnInfo `json:"columns"`
	Entities []string     `json:"entities"`
	Selected []string     `json:"selected"`
	TimeSlug string       `json:"timeSlug"`
	MinTime  *float64     `json:"minTime,omitempty"`
	MaxTime  *float64     `json:"maxTime,omitempty"`
}

// Summary is Info without per-column detail, for listings.
type Summary struct {
	ID       uuid.UUID    `json:"id"`
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Format   SourceFormat `json:"format,omitempty"`
	LoadedAt time.Time    `json:"loadedAt"`
	Rows     int          `json:"rows"`
	Columns  int          `json:"columns"`
}

// Summary returns the dataset's listing entry.
func (d *Dataset) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Summary{
		ID:       d.ID,
		Key:      d.Key,
		Label:    d.Label,
		Format:   d.Format,
		LoadedAt: d.LoadedAt,
		Rows:     d.table.NumRows(),
		Columns:  d.table.NumColumns(),
	}
}

// Info returns a snapshot of the dataset's shape.
func (d *Dataset) Info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.table
	info := Info{
		ID:       d.ID,
		Key:      d.Key,
		Label:    d.Label,
		Source:   d.Source,
		Format:   d.Format,
		LoadedAt: d.LoadedAt,
		Rows:     t.NumRows(),
		Entities: t.AvailableEntities(),
		Selected: t.SelectedEntityNames(),
		TimeSlug: t.TimeSlug(),
	}
	if min, ok := t.MinYear(); ok {
		info.MinTime = &min
	}
	if max, ok := t.MaxYear(); ok {
		info.MaxTime = &max
	}

	for _, c := range t.ColumnsAsArray() {
		spec := c.Spec()
		info.Columns = append(info.Columns, ColumnInfo{
			Slug:        c.Slug(),
			Name:        c.Name(),
			Type:        spec.Type.String(),
			Unit:        c.Unit(),
			ShortUnit:   c.ShortUnit(),
			Annotations: spec.AnnotationsColumnSlug,
			Values:      len(c.Rows()),
		})
	}
	return info
}
