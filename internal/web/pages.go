package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/owid"
)

// previewData is what the dataset preview page renders.
type previewData struct {
	Info    catalog.Info
	Headers []string
	Units   []string
	Rows    [][]string
	Marked  []bool // row belongs to a selected entity
	Shown   int
	Total   int
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse;font-size:.9rem}` +
	`th,td{border:1px solid #ddd;padding:.25rem .5rem;text-align:left}` +
	`th{background:#f4f4f4}tr.selected{background:#fff7d6}` +
	`.muted{color:#777}.error{border-left:4px solid #c33;padding:.5rem 1rem}`

// layout wraps body in the shared page chrome.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			"<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// indexPage lists the loaded datasets.
func indexPage(datasets []catalog.Summary) templ.Component {
	return layout("Datasets", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, "<h1>Datasets</h1>")
		if len(datasets) == 0 {
			_, err := io.WriteString(w, `<p class="muted">No datasets loaded.</p>`)
			return err
		}
		io.WriteString(w, "<table><tr><th>Key</th><th>Label</th><th>Format</th><th>Rows</th><th>Columns</th></tr>")
		for _, d := range datasets {
			fmt.Fprintf(w, `<tr><td><a href="/datasets/%s">%s</a></td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>`,
				templ.EscapeString(url.PathEscape(d.Key)), templ.EscapeString(d.Key),
				templ.EscapeString(d.Label), templ.EscapeString(string(d.Format)), d.Rows, d.Columns)
		}
		_, err := io.WriteString(w, "</table>")
		return err
	}))
}

// previewPage renders the head of a dataset's filtered view, selected rows
// highlighted.
func previewPage(p previewData) templ.Component {
	return layout(p.Info.Label, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		info := p.Info
		fmt.Fprintf(w, "<h1>%s</h1>", templ.EscapeString(info.Label))
		fmt.Fprintf(w, `<p class="muted">%d rows, %d entities`, info.Rows, len(info.Entities))
		if info.MinTime != nil && info.MaxTime != nil {
			fmt.Fprintf(w, ", %s %g to %g", templ.EscapeString(info.TimeSlug), *info.MinTime, *info.MaxTime)
		}
		io.WriteString(w, "</p>")

		if len(info.Selected) > 0 {
			io.WriteString(w, "<p>Selected:")
			for _, name := range info.Selected {
				fmt.Fprintf(w, " <strong>%s</strong>", templ.EscapeString(name))
			}
			io.WriteString(w, "</p>")
		}

		io.WriteString(w, "<table><tr>")
		for i, h := range p.Headers {
			fmt.Fprintf(w, "<th>%s", templ.EscapeString(h))
			if p.Units[i] != "" {
				fmt.Fprintf(w, ` <span class="muted">(%s)</span>`, templ.EscapeString(p.Units[i]))
			}
			io.WriteString(w, "</th>")
		}
		io.WriteString(w, "</tr>")
		for i, row := range p.Rows {
			if p.Marked[i] {
				io.WriteString(w, `<tr class="selected">`)
			} else {
				io.WriteString(w, "<tr>")
			}
			for _, cell := range row {
				fmt.Fprintf(w, "<td>%s</td>", templ.EscapeString(cell))
			}
			io.WriteString(w, "</tr>")
		}
		io.WriteString(w, "</table>")

		_, err := fmt.Fprintf(w, `<p class="muted">Showing %d of %d rows.</p>`, p.Shown, p.Total)
		return err
	}))
}

// errorPage renders a user message for browser requests.
func errorPage(msg catalog.UserMessage, status int) templ.Component {
	return layout(http.StatusText(status), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="error"><h1>%s</h1><p>%s</p><p class="muted">Code: %s</p></div>`,
			templ.EscapeString(msg.Message), templ.EscapeString(msg.Action), templ.EscapeString(msg.Code))
		return err
	}))
}

// handleIndex renders the dataset list.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	all := s.registry.All()
	summaries := make([]catalog.Summary, len(all))
	for i, d := range all {
		summaries[i] = d.Summary()
	}
	s.render(w, r, indexPage(summaries))
}

// handlePreview renders the first rows of a dataset's filtered view with
// every value formatted under its column type.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dataset(w, r)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", s.cfg.Data.PreviewRows)
	p := previewData{Info: d.Info()}
	d.With(func(t *owid.Table) error {
		cols := t.ColumnsAsArray()
		for _, c := range cols {
			p.Headers = append(p.Headers, c.Name())
			p.Units = append(p.Units, c.ShortUnit())
		}

		rows := t.FilteredRows()
		p.Total = len(rows)
		if limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}
		p.Shown = len(rows)
		for _, row := range rows {
			cells := make([]string, len(cols))
			for i, c := range cols {
				cells[i] = c.FormatValue(row[c.Slug()])
			}
			p.Rows = append(p.Rows, cells)
			p.Marked = append(p.Marked, t.IsSelected(row))
		}
		return nil
	})

	s.render(w, r, previewPage(p))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}
