package formats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mmproteo/internal/logging"
	"mmproteo/internal/services"
	"mmproteo/internal/table"
	"mmproteo/internal/tablestore"
)

// MzIDSuffix is appended to mzID columns whose name is also an mzML column.
const MzIDSuffix = "_mzid"

// MergeOptions name the join columns of both sides, pairwise.
type MergeOptions struct {
	MzMLKeys []string
	MzIDKeys []string
	Logger   *slog.Logger
}

// MergeMzMLMzID inner-joins spectra with identifications. Rows without a
// partner are dropped; keys occurring several times on either side produce
// one row per combination and a warning.
func MergeMzMLMzID(mzml, mzid *table.Table, opts MergeOptions) (*table.Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(opts.MzMLKeys) == 0 || len(opts.MzMLKeys) != len(opts.MzIDKeys) {
		return nil, services.Wrap(services.ErrValidation, "merge", "keys",
			fmt.Sprintf("need the same non-zero number of mzML and mzID keys, got %d and %d", len(opts.MzMLKeys), len(opts.MzIDKeys)), nil)
	}
	for _, k := range opts.MzMLKeys {
		if !mzml.HasColumn(k) {
			return nil, services.Wrap(services.ErrValidation, "merge", "keys", fmt.Sprintf("mzML table has no column %q", k), nil)
		}
	}
	for _, k := range opts.MzIDKeys {
		if !mzid.HasColumn(k) {
			return nil, services.Wrap(services.ErrValidation, "merge", "keys", fmt.Sprintf("mzID table has no column %q", k), nil)
		}
	}

	renamed := make(map[string]string, len(mzid.Columns))
	out := table.New(mzml.Columns...)
	for _, c := range mzid.Columns {
		name := c
		if mzml.HasColumn(c) {
			name = c + MzIDSuffix
		}
		renamed[c] = name
		out.AddColumn(name)
	}

	index := make(map[string][]table.Row, len(mzid.Rows))
	for _, row := range mzid.Rows {
		key, ok := joinKey(row, opts.MzIDKeys)
		if !ok {
			continue
		}
		index[key] = append(index[key], row)
	}

	duplicates := 0
	for _, rows := range index {
		if len(rows) > 1 {
			duplicates++
		}
	}
	seen := make(map[string]int, len(mzml.Rows))
	for _, left := range mzml.Rows {
		key, ok := joinKey(left, opts.MzMLKeys)
		if !ok {
			continue
		}
		seen[key]++
		if seen[key] == 2 {
			duplicates++
		}
		for _, right := range index[key] {
			merged := make(table.Row, len(left)+len(right))
			for k, v := range left {
				merged[k] = v
			}
			for k, v := range right {
				merged[renamed[k]] = v
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	if duplicates > 0 {
		logging.WarnWithContext(logger, "Merge keys are not unique", "duplicate_merge_keys",
			logging.Int("duplicate_keys", duplicates),
			logging.Strings("mzml_keys", opts.MzMLKeys),
			logging.Strings("mzid_keys", opts.MzIDKeys),
			logging.String(logging.FieldImpact, "duplicated keys produce one row per combination"))
	}
	return out, nil
}

// MergeFiles reads an mzML and an mzID file, merges them and stores the
// result as a SQLite table at target. It returns the number of merged rows.
func MergeFiles(ctx context.Context, mzmlPath, mzidPath, target string, opts MergeOptions) (int, error) {
	mzml, err := Read(ctx, mzmlPath)
	if err != nil {
		return 0, err
	}
	mzid, err := Read(ctx, mzidPath)
	if err != nil {
		return 0, err
	}
	merged, err := MergeMzMLMzID(mzml, mzid, opts)
	if err != nil {
		return 0, err
	}
	if err := tablestore.Write(ctx, target, merged); err != nil {
		return 0, fmt.Errorf("write %s: %w", target, err)
	}
	return merged.Len(), nil
}

func joinKey(row table.Row, keys []string) (string, bool) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, ok := row.Field(k)
		if !ok {
			return "", false
		}
		parts[i] = v
	}
	return strings.Join(parts, "\x00"), true
}
