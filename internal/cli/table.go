package cli

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders tabular data using go-pretty.
// Created via Output.Table().
type Table struct {
	out     *Output
	meta    Meta
	headers []string
	rows    [][]string
}

// AddRow adds a row of values. Should match header count.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

func (t *Table) Render() error {
	return t.out.Render(t)
}

func (t *Table) Meta() Meta {
	return t.meta
}

// RenderText writes a light-bordered table with upper-cased headers. An empty table prints a
// single "(none)" line instead of a bare header.
func (t *Table) RenderText(w io.Writer, s Styles) error {
	if len(t.rows) == 0 {
		_, err := io.WriteString(w, s.Key("(none)")+"\n")
		return err
	}
	tw := t.newTableWriter()
	tw.SetStyle(table.StyleLight)
	if s.enabled {
		tw.Style().Color.Header = text.Colors{text.Bold, text.FgHiMagenta}
	}
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderJSON returns the rows as objects keyed by header.
func (t *Table) RenderJSON() any {
	result := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string, len(t.headers))
		for i, h := range t.headers {
			if i < len(row) {
				obj[toJSONKey(h)] = row[i]
			}
		}
		result = append(result, obj)
	}
	return result
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	tw := t.newTableWriter()
	_, err := io.WriteString(w, tw.RenderMarkdown()+"\n")
	return err
}

func (t *Table) newTableWriter() table.Writer {
	tw := table.NewWriter()

	headerRow := make(table.Row, len(t.headers))
	for i, h := range t.headers {
		headerRow[i] = h
	}
	tw.AppendHeader(headerRow)

	for _, row := range t.rows {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			tableRow[i] = cell
		}
		tw.AppendRow(tableRow)
	}
	return tw
}

// toJSONKey converts a header to a JSON key (lowercase, underscores).
func toJSONKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}
