// Package formats reads mass-spectrometry files into tables and merges mzML
// spectra with their mzID identifications.
package formats

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"mmproteo/internal/fileutil"
	"mmproteo/internal/services"
	"mmproteo/internal/table"
	"mmproteo/internal/tablestore"
)

// Reader loads one file into a table.
type Reader func(ctx context.Context, path string) (*table.Table, error)

var readers = map[string]Reader{
	"mgf":    ReadMGF,
	"mzml":   ReadMzML,
	"mzid":   ReadMzID,
	"sqlite": tablestore.Read,
}

// ReadableExtensions lists the extensions Read understands, sorted.
func ReadableExtensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FilenameColumn names the column recording which file a row came from.
func FilenameColumn(ext string) string {
	return ext + "_filename"
}

// Read dispatches on the file extension and tags every row with the source
// path in the <ext>_filename column.
func Read(ctx context.Context, path string) (*table.Table, error) {
	_, ext := fileutil.SplitExtension(filepath.Base(path), ReadableExtensions())
	read, ok := readers[ext]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "formats", "read",
			fmt.Sprintf("unsupported file type %q", filepath.Base(path)), nil)
	}
	t, err := read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	t.SetAll(FilenameColumn(ext), path)
	return t, nil
}
