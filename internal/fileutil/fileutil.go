package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// SplitExtension separates the longest extension in known that name ends
// with, compared case-insensitively. Known extensions carry no leading dot
// and may be compound ("mzml.gz"). The returned extension keeps the casing of
// the entry in known; base keeps the casing of name. When nothing matches,
// base is name and ext is "".
func SplitExtension(name string, known []string) (base, ext string) {
	folded := fold.String(name)
	best := -1
	for i, candidate := range known {
		if candidate == "" {
			continue
		}
		suffix := "." + fold.String(candidate)
		if !strings.HasSuffix(folded, suffix) || len(folded) == len(suffix) {
			continue
		}
		if best < 0 || len(candidate) > len(known[best]) {
			best = i
		}
	}
	if best < 0 {
		return name, ""
	}
	return name[:len(name)-len(known[best])-1], known[best]
}

// HasExtension reports whether name ends with "."+ext, ignoring case.
func HasExtension(name, ext string) bool {
	_, got := SplitExtension(name, []string{ext})
	return got != ""
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListRegularFiles returns the sorted absolute paths of the regular files
// directly inside dir.
func ListRegularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// WriteAtomic streams content into a temporary file next to path and renames
// it into place once write succeeds. The temporary file is removed on failure.
func WriteAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}

// TempPath reserves a unique path next to target for writers that must open
// the file themselves, such as database drivers. The caller renames or removes it.
func TempPath(target string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return name, nil
}
