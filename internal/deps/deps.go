// Package deps resolves the external programs mmproteo shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program a command needs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved on PATH.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// CheckBinaries resolves every requirement with exec.LookPath.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		switch resolved, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Available = true
			status.Path = resolved
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the statuses of required programs that did not resolve.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
