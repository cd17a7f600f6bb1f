package filter

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// FileNameField is the record field that carries a file name.
const FileNameField = "fileName"

var fold = cases.Fold()

// ExtensionMatcher returns a case-insensitive suffix test accepting every
// required extension and every "required.optional" combination, so
// "sample.mzML.gz" passes for required "mzml" and optional "gz". An empty
// required list accepts every name.
func ExtensionMatcher(required, optional []string) func(name string) bool {
	if len(required) == 0 {
		return func(string) bool { return true }
	}
	suffixes := make([]string, 0, len(required)*(len(optional)+1))
	for _, req := range required {
		req = strings.TrimPrefix(fold.String(req), ".")
		if req == "" {
			continue
		}
		suffixes = append(suffixes, "."+req)
		for _, opt := range optional {
			opt = strings.TrimPrefix(fold.String(opt), ".")
			if opt == "" || opt == req {
				continue
			}
			suffixes = append(suffixes, "."+req+"."+opt)
		}
	}
	return func(name string) bool {
		folded := fold.String(name)
		for _, suffix := range suffixes {
			if strings.HasSuffix(folded, suffix) {
				return true
			}
		}
		return false
	}
}

// Selection describes how a list of records is narrowed down.
type Selection struct {
	// NameField names the field used for extension matching, sorting and
	// de-duplication. Defaults to FileNameField.
	NameField string
	// Extensions lists the allowed extensions. Empty disables extension filtering.
	Extensions []string
	// Optional lists extensions that may follow an allowed one, typically archives.
	Optional []string
	Node     Node
	// Unknown is the outcome for records the tree cannot decide.
	Unknown  bool
	Sort     bool
	Dedupe   bool
	MaxItems int
}

// Select applies the selection to records and returns the kept ones. Records
// without a name field pass the extension test.
func Select[R Record](records []R, sel Selection) []R {
	nameField := sel.NameField
	if nameField == "" {
		nameField = FileNameField
	}
	matches := ExtensionMatcher(sel.Extensions, sel.Optional)
	seen := make(map[string]struct{}, len(records))

	kept := make([]R, 0, len(records))
	for _, rec := range records {
		name, hasName := rec.Field(nameField)
		if sel.Dedupe && hasName {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
		}
		if hasName && !matches(name) {
			continue
		}
		if !Resolve(sel.Node, rec, sel.Unknown) {
			continue
		}
		kept = append(kept, rec)
	}

	if sel.Sort {
		sort.SliceStable(kept, func(i, j int) bool {
			a, _ := kept[i].Field(nameField)
			b, _ := kept[j].Field(nameField)
			return a < b
		})
	}
	if sel.MaxItems > 0 && len(kept) > sel.MaxItems {
		kept = kept[:sel.MaxItems]
	}
	return kept
}

// SelectNames applies the selection to plain file names, exposed to the
// condition tree under FileNameField.
func SelectNames(names []string, sel Selection) []string {
	sel.NameField = FileNameField
	records := make([]Fields, 0, len(names))
	for _, name := range names {
		records = append(records, Fields{FileNameField: name})
	}
	kept := Select(records, sel)
	out := make([]string, 0, len(kept))
	for _, rec := range kept {
		out = append(out, rec[FileNameField])
	}
	return out
}
