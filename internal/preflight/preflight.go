package preflight

import (
	"context"
	"fmt"
	"strings"

	"checkrecon/internal/config"
	"checkrecon/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Image directory", cfg.Paths.ImageDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
	}

	switch cfg.Acquisition.Mode {
	case config.AcquisitionDirectory:
		results = append(results, CheckReadableDirectory("Document source", cfg.Acquisition.SourceDir))
	case config.AcquisitionHTTP:
		results = append(results, CheckPortal(ctx, cfg.Acquisition.BaseURL, cfg.Acquisition.UserAgent))
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromDependency(status))
	}
	return results
}

// Err summarizes failed results, or returns nil when every check passed.
func Err(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
}

func fromDependency(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Path}
	}
	return Result{Name: status.Name, Passed: status.Optional, Detail: status.Detail}
}
