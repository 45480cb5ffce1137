package owid

// rolling.go builds rolling-average and interval-change columns.
//
// Rows are grouped internally (groups in order of first appearance, stable
// sorted by date within a group), so callers need not pre-sort. Missing
// calendar dates inside a group become placeholder slots: they take a place
// in the window but contribute no value.

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/grapher/internal/coltype"
	"github.com/JonMunkholm/grapher/internal/table"
)

// RollingAverageOptions describes a rolling-average column.
type RollingAverageOptions struct {
	Slug string
	Name string
	Type coltype.Type // Numeric when zero

	ValueSlug string
	DateSlug  string // "day" when empty
	GroupSlug string // "entityName" when empty

	WindowSize int

	// Multiplier scales each average; 0 means 1.
	Multiplier float64

	// IntervalChange, when positive, replaces each average with its percent
	// change against the average that many points earlier in the same group.
	// It cannot be combined with Multiplier.
	IntervalChange int
}

func (o *RollingAverageOptions) validate() error {
	if o.Slug == "" || o.ValueSlug == "" {
		return fmt.Errorf("%w: rolling average needs a slug and a value slug", table.ErrInvalidSpec)
	}
	if o.WindowSize < 1 {
		return fmt.Errorf("%w: window size %d", table.ErrInvalidSpec, o.WindowSize)
	}
	if o.IntervalChange < 0 {
		return fmt.Errorf("%w: interval change %d", table.ErrInvalidSpec, o.IntervalChange)
	}
	if o.IntervalChange > 0 && o.Multiplier != 0 && o.Multiplier != 1 {
		return fmt.Errorf("%w: multiplier and interval change are mutually exclusive", table.ErrInvalidSpec)
	}
	return nil
}

// AddRollingAverageColumn registers a computed column holding the trailing
// mean of ValueSlug over WindowSize date slots. Rows lacking a numeric value
// or date get no value.
func (t *Table) AddRollingAverageColumn(opts RollingAverageOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.DateSlug == "" {
		opts.DateSlug = table.DaySlug
	}
	if opts.GroupSlug == "" {
		opts.GroupSlug = table.EntityNameSlug
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = 1
	}

	key := "owid:rolling:" + opts.Slug
	return t.AddNumericComputedColumn(table.ColumnSpec{
		Slug: opts.Slug,
		Name: opts.Name,
		Type: opts.Type,
		Fn: func(_ table.Row, index int, tb *table.Table) any {
			results := table.Memoize(tb, key, func() map[int]float64 {
				return rollingAverage(tb.Rows(), opts)
			})
			if v, ok := results[index]; ok {
				return v
			}
			return nil
		},
	})
}

// point is one usable observation.
type point struct {
	index int // row position
	date  float64
	value float64
}

// rollingAverage returns the derived value for every row index that has one.
func rollingAverage(rows []table.Row, opts RollingAverageOptions) map[int]float64 {
	groups := make(map[any][]point)
	var order []any
	for i, row := range rows {
		value, ok := row.Float(opts.ValueSlug)
		if !ok {
			continue
		}
		date, ok := row.Float(opts.DateSlug)
		if !ok {
			continue
		}
		g := row[opts.GroupSlug]
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], point{index: i, date: date, value: value})
	}

	out := make(map[int]float64)
	for _, g := range order {
		pts := groups[g]
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].date < pts[j].date })

		averages := trailingMeans(pts, opts.WindowSize)
		for k, p := range pts {
			if opts.IntervalChange > 0 {
				if k < opts.IntervalChange {
					continue
				}
				prev := averages[k-opts.IntervalChange]
				if prev == 0 {
					continue
				}
				out[p.index] = 100 * (averages[k] - prev) / prev
				continue
			}
			out[p.index] = averages[k] * opts.Multiplier
		}
	}
	return out
}

// trailingMeans returns, for each point of a date-sorted group, the mean of
// the values in the last window slots ending at that point. Missing dates
// between points occupy slots without contributing.
func trailingMeans(pts []point, window int) []float64 {
	type slot struct {
		value  float64
		filled bool
	}

	var slots []slot
	ends := make([]int, len(pts))
	for k, p := range pts {
		if k > 0 {
			gap := int(p.date-pts[k-1].date) - 1
			// Beyond a full window, extra placeholders change nothing.
			gap = min(gap, window)
			for ; gap > 0; gap-- {
				slots = append(slots, slot{})
			}
		}
		slots = append(slots, slot{value: p.value, filled: true})
		ends[k] = len(slots) - 1
	}

	means := make([]float64, len(pts))
	for k, end := range ends {
		sum, n := 0.0, 0
		for i := max(0, end-window+1); i <= end; i++ {
			if slots[i].filled {
				sum += slots[i].value
				n++
			}
		}
		means[k] = sum / float64(n)
	}
	return means
}
