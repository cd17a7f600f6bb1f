package pride

import (
	"encoding/json"
	"sort"

	"mmproteo/internal/table"
)

// Field names every listing source fills in.
const (
	FileNameField     = "fileName"
	DownloadLinkField = "downloadLink"
)

// File is one project file with its flattened listing fields. Nested JSON
// objects contribute both a dotted key ("publicFileLocation.value") and their
// leaf key ("value"). Top-level fields win over leaves; among leaves the first
// in key order wins.
type File struct {
	Fields map[string]string
}

// Field implements filter.Record.
func (f File) Field(name string) (string, bool) {
	v, ok := f.Fields[name]
	return v, ok
}

func (f File) Name() string {
	return f.Fields[FileNameField]
}

func (f File) DownloadLink() string {
	return f.Fields[DownloadLinkField]
}

// Columns returns the union of field names over files, sorted with fileName
// and downloadLink first.
func Columns(files []File) []string {
	seen := map[string]struct{}{}
	var rest []string
	for _, f := range files {
		for k := range f.Fields {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if k != FileNameField && k != DownloadLinkField {
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	var cols []string
	for _, k := range []string{FileNameField, DownloadLinkField} {
		if _, ok := seen[k]; ok {
			cols = append(cols, k)
		}
	}
	return append(cols, rest...)
}

// Table converts files into a table for previews.
func Table(files []File) *table.Table {
	t := table.New(Columns(files)...)
	for _, f := range files {
		row := make(table.Row, len(f.Fields))
		for k, v := range f.Fields {
			row[k] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func newFile(entry map[string]any) File {
	fields := make(map[string]string)
	flatten("", entry, fields)
	return File{Fields: fields}
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dotted := k
		if prefix != "" {
			dotted = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			flatten(dotted, v, out)
		case nil:
		default:
			text := scalarText(v)
			out[dotted] = text
			if _, exists := out[k]; !exists {
				out[k] = text
			}
		}
	}
}

func scalarText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
