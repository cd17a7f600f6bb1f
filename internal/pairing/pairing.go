package pairing

import (
	"sort"

	"mmproteo/internal/fileutil"
)

// MergeJob pairs one file of each recognized extension with the target the
// merged output is written to.
type MergeJob struct {
	A      string
	B      string
	Target string
}

// Options tunes the pairing sweep.
type Options struct {
	// Tolerance is how many trailing base-name characters may differ.
	Tolerance int
	// Suffix is appended to the shared prefix to form the target.
	Suffix string
}

type entry struct {
	name string
	base string
	ext  string
}

// Plan pairs files ending in extA with files ending in extB. Names are sorted
// and swept once from left to right: adjacent entries with different
// extensions whose base names share at least min(len)-Tolerance leading
// characters form a job, and both are consumed. The sweep is greedy, so three
// files sharing a prefix may leave one unpaired. Names with neither
// extension are ignored.
func Plan(filenames []string, extA, extB string, opts Options) []MergeJob {
	known := []string{extA, extB}
	entries := make([]entry, 0, len(filenames))
	for _, name := range filenames {
		base, ext := fileutil.SplitExtension(name, known)
		if ext == "" {
			continue
		}
		entries = append(entries, entry{name: name, base: base, ext: ext})
	}
	if len(entries) < 2 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}
		if entries[i].base != entries[j].base {
			return entries[i].base < entries[j].base
		}
		return entries[i].ext < entries[j].ext
	})

	var jobs []MergeJob
	last := entries[0]
	lastAvailable := true
	for _, current := range entries[1:] {
		available := true
		if lastAvailable && current.ext != last.ext {
			cur, prev := []rune(current.base), []rune(last.base)
			common := commonPrefixLen(cur, prev)
			required := min(len(cur), len(prev)) - opts.Tolerance
			if common >= required {
				job := MergeJob{Target: string(cur[:common]) + opts.Suffix}
				if current.ext == extA {
					job.A, job.B = current.name, last.name
				} else {
					job.A, job.B = last.name, current.name
				}
				jobs = append(jobs, job)
				available = false
			}
		}
		last = current
		lastAvailable = available
	}
	return jobs
}

// commonPrefixLen counts shared leading code points.
func commonPrefixLen(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
