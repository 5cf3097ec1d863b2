package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/valter-silva-au/contextcore/internal/logging"
	"github.com/valter-silva-au/contextcore/pkg/models"
	"gopkg.in/yaml.v3"
)

// ExportDirWriter stages export files next to the output directory and
// promotes them with a rename, so readers never observe a partial export.
type ExportDirWriter interface {
	Write(ctx context.Context, outDir string, files map[string][]byte) error
}

type fileExportWriter struct{}

// NewExportDirWriter creates an ExportDirWriter on the local filesystem.
func NewExportDirWriter() ExportDirWriter {
	return &fileExportWriter{}
}

// Write writes files into a staging directory beside outDir, then swaps it
// into place. An existing outDir is moved aside and removed only after the
// new directory is in place. Cancellation before promotion removes the
// staging directory and leaves outDir untouched.
func (w *fileExportWriter) Write(ctx context.Context, outDir string, files map[string][]byte) (err error) {
	log := logging.New("exportdir")

	out, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolving output directory %s: %w", outDir, err)
	}
	parent, base := filepath.Dir(out), filepath.Base(out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", out, err)
	}

	staging, err := os.MkdirTemp(parent, "."+base+".staging-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				log.Warn("removing staging directory failed", "path", staging, "error", rmErr)
			}
		}
	}()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export aborted while staging: %w", err)
		}
		if err := writeSynced(filepath.Join(staging, name), files[name]); err != nil {
			return fmt.Errorf("staging %s: %w", name, err)
		}
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return fmt.Errorf("setting staging permissions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export aborted before promotion: %w", err)
	}

	unlock, err := lockDir(parent)
	if err != nil {
		return err
	}
	defer func() {
		if uErr := unlock(); uErr != nil {
			log.Warn("releasing export lock failed", "path", parent, "error", uErr)
		}
	}()
	return promote(staging, out, log)
}

// promote renames staging to out, moving any existing out aside first and
// restoring it if the final rename fails.
func promote(staging, out string, log *slog.Logger) error {
	var previous string
	if _, err := os.Lstat(out); err == nil {
		tmp, err := os.MkdirTemp(filepath.Dir(out), "."+filepath.Base(out)+".previous-")
		if err != nil {
			return fmt.Errorf("reserving backup name: %w", err)
		}
		if err := os.Remove(tmp); err != nil {
			return fmt.Errorf("reserving backup name: %w", err)
		}
		if err := os.Rename(out, tmp); err != nil {
			return fmt.Errorf("moving existing %s aside: %w", out, err)
		}
		previous = tmp
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("inspecting %s: %w", out, err)
	}

	if err := os.Rename(staging, out); err != nil {
		if previous != "" {
			if rbErr := os.Rename(previous, out); rbErr != nil {
				log.Warn("restoring previous export failed", "path", previous, "error", rbErr)
			}
		}
		return fmt.Errorf("promoting export to %s: %w", out, err)
	}

	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			log.Warn("removing previous export failed", "path", previous, "error", err)
		}
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportDirReader loads an export directory back from disk.
type ExportDirReader interface {
	Read(dir string) (*models.ExportBundle, error)
}

type fileExportReader struct{}

// NewExportDirReader creates an ExportDirReader on the local filesystem.
func NewExportDirReader() ExportDirReader {
	return &fileExportReader{}
}

// Read loads every known export file that exists. Missing files are simply
// absent from the bundle and files that fail to decode are recorded in
// DecodeErrors, so callers can report all problems at once. The source
// manifest is kept raw; parsing it is the caller's concern.
func (r *fileExportReader) Read(dir string) (*models.ExportBundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading export directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reading export directory %s: not a directory", dir)
	}

	b := &models.ExportBundle{
		Dir:          dir,
		Raw:          make(map[string][]byte),
		DecodeErrors: make(map[string]error),
	}

	names := append(append([]string{}, models.RequiredExportFiles...), models.FileProvenance)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		b.Raw[name] = data
	}

	decode := func(name string, fn func([]byte) error) {
		data, ok := b.Raw[name]
		if !ok {
			return
		}
		if err := fn(data); err != nil {
			b.DecodeErrors[name] = err
		}
	}

	decode(models.FileArtifactManifest, func(data []byte) error {
		var am models.ArtifactManifest
		if err := yaml.Unmarshal(data, &am); err != nil {
			return err
		}
		if am.Kind != models.ArtifactManifestKind {
			return fmt.Errorf("kind is %q, want %q", am.Kind, models.ArtifactManifestKind)
		}
		b.ArtifactManifest = &am
		return nil
	})
	decode(models.FileProjectContext, func(data []byte) error {
		var pc models.ProjectContext
		if err := yaml.Unmarshal(data, &pc); err != nil {
			return err
		}
		if pc.Kind != models.ProjectContextKind {
			return fmt.Errorf("kind is %q, want %q", pc.Kind, models.ProjectContextKind)
		}
		b.ProjectContext = &pc
		return nil
	})
	decode(models.FileCoverageReport, func(data []byte) error {
		var cd models.CoverageDocument
		if err := json.Unmarshal(data, &cd); err != nil {
			return err
		}
		b.Coverage = &cd
		return nil
	})
	decode(models.FileOnboardingMetadata, func(data []byte) error {
		var om models.OnboardingMetadata
		if err := json.Unmarshal(data, &om); err != nil {
			return err
		}
		b.Onboarding = &om
		return nil
	})
	decode(models.FileProvenance, func(data []byte) error {
		var pr models.ProvenanceRecord
		if err := json.Unmarshal(data, &pr); err != nil {
			return err
		}
		b.Provenance = &pr
		return nil
	})

	return b, nil
}
