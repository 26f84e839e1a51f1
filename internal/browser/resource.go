package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrResourceNotFound is returned when no candidate path holds the resume file.
var ErrResourceNotFound = errors.New("resume file not found in any of the expected locations")

const (
	// DefaultResourceName is probed when no explicit path is configured.
	DefaultResourceName = "resume.pdf"
	// ContainerResourceDir is where container images mount the resume.
	ContainerResourceDir = "/usr/src/app/resume"
)

// ResourceCandidates lists where the resume may live, in probe order:
// the explicit path, the container mount, then paths relative to the working directory.
func ResourceCandidates(explicit string) []string {
	name := DefaultResourceName
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
		name = filepath.Base(explicit)
	}
	candidates = append(candidates, filepath.Join(ContainerResourceDir, name))
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(cwd, name),
			filepath.Join(cwd, "resume", name),
		)
	}
	return candidates
}

// ResolveResource returns the first candidate that is an existing regular file.
func ResolveResource(candidates []string) (string, error) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried: %s)", ErrResourceNotFound, strings.Join(candidates, ", "))
}
