package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// GateInputReader reads what downstream layers leave behind for Gate 2.
type GateInputReader interface {
	ReadIngestion(ctx context.Context, dir string) (*models.IngestionResult, error)
	ReadExecution(ctx context.Context, dir string) (*models.ExecutionSummary, error)
}

type fileGateInputs struct {
	scanner ArtifactScanner
}

// NewGateInputReader creates a GateInputReader on the local filesystem.
// Execution directories without an execution-result.json are counted
// with scanner, so its file and depth bounds apply.
func NewGateInputReader(scanner ArtifactScanner) GateInputReader {
	return &fileGateInputs{scanner: scanner}
}

// ReadIngestion reads <dir>/ingestion-result.json. An empty dir or a
// missing file yields an error wrapping fs.ErrNotExist.
func (g *fileGateInputs) ReadIngestion(ctx context.Context, dir string) (*models.IngestionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("no ingestion directory given: %w", fs.ErrNotExist)
	}
	path := filepath.Join(dir, models.FileIngestionResult)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var res models.IngestionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &res, nil
}

// ReadExecution counts execution units: the units listed in
// <dir>/execution-result.json when present, otherwise the regular files
// below dir, ignoring dot-files and dot-directories.
func (g *fileGateInputs) ReadExecution(ctx context.Context, dir string) (*models.ExecutionSummary, error) {
	if dir == "" {
		return nil, fmt.Errorf("no execution directory given: %w", fs.ErrNotExist)
	}

	path := filepath.Join(dir, models.FileExecutionResult)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var res models.ExecutionResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &models.ExecutionSummary{Units: len(res.Units), Source: models.FileExecutionResult}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	files, err := g.scanner.Scan(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("counting files in %s: %w", dir, err)
	}
	count := 0
	for _, f := range files {
		if !hiddenPath(f) {
			count++
		}
	}
	return &models.ExecutionSummary{Units: count, Source: "file count"}, nil
}

// hiddenPath reports whether any segment of a slash-separated path starts
// with a dot.
func hiddenPath(rel string) bool {
	for seg := range strings.SplitSeq(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
