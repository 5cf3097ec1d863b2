package core

import (
	"context"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// ArtifactScanner lists candidate artifact files below a directory, sorted.
// This interface is defined locally in core to avoid importing storage.
type ArtifactScanner interface {
	Scan(ctx context.Context, root string) ([]string, error)
}

// ExistingMapLoader reads an explicit artifact id -> path map.
// This interface is defined locally in core to avoid importing storage.
type ExistingMapLoader interface {
	Load(path string) (map[string]string, error)
}

// ExportWriter stages a set of files and promotes them to outDir as one
// unit. Either every file appears in outDir or outDir is left untouched.
type ExportWriter interface {
	Write(ctx context.Context, outDir string, files map[string][]byte) error
}

// BundleReader loads an export directory back from disk.
type BundleReader interface {
	Read(dir string) (*models.ExportBundle, error)
}

// GateInputReader reads the artifacts downstream layers leave for Gate 2.
// Missing inputs are reported with an error wrapping fs.ErrNotExist.
type GateInputReader interface {
	ReadIngestion(ctx context.Context, dir string) (*models.IngestionResult, error)
	ReadExecution(ctx context.Context, dir string) (*models.ExecutionSummary, error)
}
