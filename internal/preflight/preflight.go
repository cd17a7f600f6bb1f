package preflight

import (
	"context"

	"mmproteo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Needs describes what the requested commands depend on.
type Needs struct {
	Network  bool
	Archives bool
	Docker   bool
}

// Merge returns the union of n and other.
func (n Needs) Merge(other Needs) Needs {
	return Needs{
		Network:  n.Network || other.Network,
		Archives: n.Archives || other.Archives,
		Docker:   n.Docker || other.Docker,
	}
}

// RunAll executes the checks applicable to needs. The storage directory is
// always checked.
func RunAll(ctx context.Context, cfg *config.Config, needs Needs) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir)}
	for _, status := range CheckSystemDeps(cfg, needs) {
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			r.Detail = status.Path
		}
		results = append(results, r)
	}
	if needs.Network {
		results = append(results, CheckPRIDE(ctx, cfg.Project.BaseURL))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
