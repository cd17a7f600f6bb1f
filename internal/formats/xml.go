package formats

import (
	"fmt"

	"github.com/beevik/etree"

	"mmproteo/internal/table"
)

func loadXML(path string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%s has no root element", path)
	}
	return root, nil
}

// collect returns every descendant of el with the given local tag, in
// document order, without descending into matches.
func collect(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
			continue
		}
		out = append(out, collect(child, tag)...)
	}
	return out
}

func firstChild(el *etree.Element, tag string) *etree.Element {
	found := collect(el, tag)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// putAttrs copies the attributes of el into row. Existing keys win.
func putAttrs(row table.Row, el *etree.Element) {
	for _, attr := range el.Attr {
		if attr.Space == "xmlns" || attr.Key == "xmlns" {
			continue
		}
		put(row, attr.Key, table.ParseValue(attr.Value))
	}
}

// putParams flattens cvParam and userParam elements below el, skipping any
// subtree whose tag is listed in skip. A parameter without a value is
// recorded as true.
func putParams(row table.Row, el *etree.Element, skip map[string]bool) {
	for _, child := range el.ChildElements() {
		if skip[child.Tag] {
			continue
		}
		if child.Tag == "cvParam" || child.Tag == "userParam" {
			name := child.SelectAttrValue("name", "")
			if name == "" {
				continue
			}
			if value := child.SelectAttrValue("value", ""); value != "" {
				put(row, name, table.ParseValue(value))
			} else {
				put(row, name, true)
			}
			continue
		}
		putParams(row, child, skip)
	}
}

func put(row table.Row, key string, value any) {
	if _, exists := row[key]; !exists {
		row[key] = value
	}
}
