package formats

import (
	"context"

	"mmproteo/internal/table"
)

var mzmlSkippedSubtrees = map[string]bool{"binaryDataArrayList": true}

// ReadMzML returns one row per spectrum carrying the spectrum attributes
// (id, index, defaultArrayLength) and its flattened cvParams, including scan
// and precursor parameters. Binary peak arrays are not decoded.
func ReadMzML(ctx context.Context, path string) (*table.Table, error) {
	root, err := loadXML(path)
	if err != nil {
		return nil, err
	}
	out := table.New()
	for _, spectrum := range collect(root, "spectrum") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := table.Row{}
		putAttrs(row, spectrum)
		// Spectrum ids are matched against mzID spectrumID values as text.
		if id := spectrum.SelectAttrValue("id", ""); id != "" {
			row["id"] = id
		}
		putParams(row, spectrum, mzmlSkippedSubtrees)
		out.Append(row)
	}
	return out, nil
}
