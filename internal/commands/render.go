package commands

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"mmproteo/internal/pride"
	"mmproteo/internal/registry"
	rows "mmproteo/internal/table"
)

// ItemColumn holds the registry key in stage previews.
const ItemColumn = "item"

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderTable writes t with go-pretty. Terminals get rounded borders, other
// writers a plain ASCII layout. Columns listed in escape are URL-escaped.
func renderTable(w io.Writer, t *rows.Table, escape map[string]bool) error {
	if len(t.Columns) == 0 {
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	// Column names are registry keys; keep their case.
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		line := make(table.Row, len(t.Columns))
		for i, c := range t.Columns {
			value := rows.FormatValue(r[c])
			if escape[c] {
				value = escapeLink(value)
			}
			line[i] = value
		}
		tw.AppendRow(line)
	}
	tw.Render()
	_, err := fmt.Fprintln(w)
	return err
}

func escapeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return u.String()
}

func (s *Session) escapedColumns() map[string]bool {
	if !s.Config.Display.URLEncodeLinks {
		return nil
	}
	return map[string]bool{pride.DownloadLinkField: true}
}

// previewColumns returns the configured columns followed by extra, or nil to
// keep every column when none are configured.
func (s *Session) previewColumns(extra ...string) []string {
	if len(s.Config.Display.ShownColumns) == 0 {
		return nil
	}
	return append(append([]string(nil), s.Config.Display.ShownColumns...), extra...)
}

// previewRows renders the registry rows with the given keys.
func (s *Session) previewRows(keys []string, extra ...string) error {
	if len(keys) == 0 {
		return nil
	}
	t := rows.New(ItemColumn)
	for _, c := range s.Registry.Columns() {
		t.AddColumn(c)
	}
	for _, r := range s.Registry.Rows(keys...) {
		t.Rows = append(t.Rows, registryRow(r))
	}
	columns := s.previewColumns(extra...)
	if columns != nil {
		columns = append([]string{ItemColumn}, columns...)
	}
	return renderTable(s.Out, t.Project(columns).Head(s.Config.Display.PreviewRows), s.escapedColumns())
}

func registryRow(r registry.Row) rows.Row {
	out := make(rows.Row, len(r.Values)+1)
	out[ItemColumn] = r.Key
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}
