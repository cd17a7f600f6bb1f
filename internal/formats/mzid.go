package formats

import (
	"context"

	"mmproteo/internal/table"
)

var mzidSkippedSubtrees = map[string]bool{
	"SpectrumIdentificationItem": true,
	"PeptideEvidenceRef":         true,
}

// ReadMzID returns one row per SpectrumIdentificationResult. The row holds
// the result's attributes and parameters followed by those of its first
// SpectrumIdentificationItem and that item's first PeptideEvidenceRef.
// Keys already set by an outer element win.
func ReadMzID(ctx context.Context, path string) (*table.Table, error) {
	root, err := loadXML(path)
	if err != nil {
		return nil, err
	}
	out := table.New()
	for _, result := range collect(root, "SpectrumIdentificationResult") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := table.Row{}
		putAttrs(row, result)
		if spectrumID := result.SelectAttrValue("spectrumID", ""); spectrumID != "" {
			row["spectrumID"] = spectrumID
		}
		putParams(row, result, mzidSkippedSubtrees)

		if item := firstChild(result, "SpectrumIdentificationItem"); item != nil {
			putAttrs(row, item)
			putParams(row, item, mzidSkippedSubtrees)
			if evidence := firstChild(item, "PeptideEvidenceRef"); evidence != nil {
				putAttrs(row, evidence)
				putParams(row, evidence, nil)
			}
		}
		out.Append(row)
	}
	return out, nil
}
