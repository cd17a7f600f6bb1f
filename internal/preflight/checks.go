package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mmproteo/internal/config"
	"mmproteo/internal/deps"
)

// CheckPRIDE verifies that the PRIDE host answers HTTP requests.
func CheckPRIDE(ctx context.Context, baseURL string) Result {
	const name = "PRIDE archive"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base+"/pride/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps resolves the programs the requested commands shell out to.
func CheckSystemDeps(cfg *config.Config, needs Needs) []deps.Status {
	var requirements []deps.Requirement
	if needs.Archives {
		requirements = append(requirements,
			deps.Requirement{Name: "gunzip", Command: cfg.GunzipBinary(), Description: "Required to extract .gz archives"},
			deps.Requirement{Name: "unzip", Command: cfg.UnzipBinary(), Description: "Required to extract .zip archives"},
		)
	}
	if needs.Docker {
		requirements = append(requirements, deps.Requirement{
			Name:        "Docker",
			Command:     cfg.DockerBinary(),
			Description: "Required to run ThermoRawFileParser",
		})
	}
	return deps.CheckBinaries(requirements)
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (host unreachable)"
	}
	return err.Error()
}
