package preflight

import (
	"context"

	"fieldtag/internal/config"
	"fieldtag/internal/objectstore"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, objects objectstore.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.Ingest.MinFreeGiB),
	}
	if objects != nil {
		results = append(results, CheckObjectStore(ctx, objects))
	}
	return results
}
