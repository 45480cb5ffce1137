package owid

import (
	"maps"
	"slices"
	"strconv"

	"github.com/JonMunkholm/grapher/internal/table"
)

// SelectedSlug is the preferred slug of the selection column maintained by
// the entity selection API. When the data already has a column by that name
// the selection column takes the first free "isSelected-N" instead.
const SelectedSlug = "isSelected"

// SetSelectedEntities replaces the selection with names.
func (t *Table) SetSelectedEntities(names []string) error {
	t.selected = make(map[string]bool, len(names))
	t.selectedOrder = t.selectedOrder[:0]
	for _, n := range names {
		if t.selected[n] {
			continue
		}
		t.selected[n] = true
		t.selectedOrder = append(t.selectedOrder, n)
	}
	return t.refreshSelection()
}

// SelectEntity adds name to the selection. Selecting a selected entity is a
// no-op.
func (t *Table) SelectEntity(name string) error {
	if t.selected[name] {
		return nil
	}
	t.selected[name] = true
	t.selectedOrder = append(t.selectedOrder, name)
	return t.refreshSelection()
}

// DeselectEntity removes name from the selection. Deselecting an unselected
// entity is a no-op.
func (t *Table) DeselectEntity(name string) error {
	if !t.selected[name] {
		return nil
	}
	delete(t.selected, name)
	t.selectedOrder = slices.DeleteFunc(t.selectedOrder, func(s string) bool { return s == name })
	return t.refreshSelection()
}

// ClearSelection deselects every entity.
func (t *Table) ClearSelection() error {
	return t.SetSelectedEntities(nil)
}

// SelectedEntityNames returns the selected entities in selection order.
func (t *Table) SelectedEntityNames() []string {
	return slices.Clone(t.selectedOrder)
}

// IsEntitySelected reports whether name is selected.
func (t *Table) IsEntitySelected(name string) bool {
	return t.selected[name]
}

// HasSelection reports whether any entity is selected.
func (t *Table) HasSelection() bool {
	return len(t.selectedOrder) > 0
}

// SelectionSlug returns the slug of the entity selection column, or "" while
// none is registered.
func (t *Table) SelectionSlug() string {
	if t.hasSelectionColumn() {
		return t.selectionSlug
	}
	return ""
}

// Clone returns an independent copy of the table. The entity selection is
// copied and its column reads the copy's selection.
func (t *Table) Clone() *Table {
	c := &Table{
		Table:         t.Table.Clone(),
		selected:      maps.Clone(t.selected),
		selectedOrder: slices.Clone(t.selectedOrder),
		selectionSlug: t.selectionSlug,
	}
	if c.selected == nil {
		c.selected = make(map[string]bool)
	}
	if c.hasSelectionColumn() {
		// registered as a selection column above; cannot fail
		_ = c.ReplacePredicate(c.selectionSlug, c.rowSelected)
	}
	return c
}

// refreshSelection registers the selection column on first use, or after it
// was deleted, and re-materializes it otherwise.
func (t *Table) refreshSelection() error {
	if t.hasSelectionColumn() {
		return t.RefreshComputedColumn(t.selectionSlug)
	}
	t.selectionSlug = t.unusedSlug(SelectedSlug)
	return t.AddSelectionColumn(t.selectionSlug, t.rowSelected)
}

func (t *Table) hasSelectionColumn() bool {
	return t.selectionSlug != "" && slices.Contains(t.SelectionSlugs(), t.selectionSlug)
}

func (t *Table) rowSelected(row table.Row, _ int, _ *table.Table) bool {
	name, _ := row.String(table.EntityNameSlug)
	return t.selected[name]
}

// unusedSlug returns base, or base with the first free numeric suffix.
func (t *Table) unusedSlug(base string) string {
	slug := base
	for n := 2; t.Has(slug); n++ {
		slug = base + "-" + strconv.Itoa(n)
	}
	return slug
}
