package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"spacesaver/internal/config"
)

// Requirement defines an external dependency the daemon relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// RequiredBinaries returns the encoder and ffprobe requirements the daemon
// checks at startup, before running recovery.
func RequiredBinaries(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Encoder",
			Command:     cfg.Tools.EncoderBinary,
			Description: "HEVC encoder invoked per job",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFProbeBinary,
			Description: "Media prober used for classification and acceptance checks",
		},
	}
}
