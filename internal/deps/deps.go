package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// Requirement is an external binary the render pipeline executes.
type Requirement struct {
	Name    string
	Command string
	Purpose string
	// VersionFlag, when set, is passed to the binary to read its banner.
	VersionFlag string
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// CheckBinaries resolves every requirement on PATH. A binary that resolves
// but fails its version probe still counts as available; the banner is
// informational.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{
		Name:    req.Name,
		Command: strings.TrimSpace(req.Command),
		Purpose: strings.TrimSpace(req.Purpose),
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	if req.VersionFlag != "" {
		status.Version = probeVersion(ctx, path, req.VersionFlag)
	}
	return status
}

// probeVersion returns the first line of the binary's version banner, or ""
// when the probe fails.
func probeVersion(ctx context.Context, path, flag string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, path, flag).Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
