package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/valter-silva-au/contextcore/internal/logging"
)

// Scan failures.
var (
	ErrSymlinkCycle      = errors.New("symlink cycle detected")
	ErrScanLimitExceeded = errors.New("scan file limit exceeded")
)

// ScanOptions bounds a directory scan.
type ScanOptions struct {
	MaxFiles int
	MaxDepth int
}

// ArtifactScanner lists regular files below a root directory.
type ArtifactScanner interface {
	Scan(ctx context.Context, root string) ([]string, error)
}

type dirScanner struct {
	opts ScanOptions
}

// NewArtifactScanner creates a scanner that follows symlinked directories,
// fails on symlink cycles and stops at the configured bounds. Zero bounds
// fall back to 10000 files and depth 16.
func NewArtifactScanner(opts ScanOptions) ArtifactScanner {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 10000
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 16
	}
	return &dirScanner{opts: opts}
}

// scanState is the mutable state of one scan.
type scanState struct {
	ctx   context.Context
	opts  ScanOptions
	files []string
}

// Scan returns root-relative, slash-separated paths of every regular file
// reachable from root, sorted. A symlink that resolves to a directory on the
// current path is a cycle and fails the scan with ErrSymlinkCycle.
// Directories below MaxDepth are not descended into.
func (s *dirScanner) Scan(ctx context.Context, root string) ([]string, error) {
	real, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root %s: %w", root, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	st := &scanState{ctx: ctx, opts: s.opts}
	if err := st.walk(root, "", 0, map[string]bool{real: true}); err != nil {
		return nil, err
	}
	sort.Strings(st.files)
	return st.files, nil
}

func (st *scanState) walk(dir, rel string, depth int, ancestors map[string]bool) error {
	if err := st.ctx.Err(); err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		relPath := e.Name()
		if rel != "" {
			relPath = rel + "/" + e.Name()
		}

		mode := e.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				logging.New("scan").Debug("skipping dangling symlink", "path", relPath, "error", err)
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", relPath, err)
			}
			if ancestors[real] {
				return fmt.Errorf("%w: %s resolves to %s", ErrSymlinkCycle, relPath, real)
			}
			if depth+1 > st.opts.MaxDepth {
				logging.New("scan").Debug("max depth reached, not descending", "path", relPath)
				continue
			}
			ancestors[real] = true
			err = st.walk(path, relPath, depth+1, ancestors)
			delete(ancestors, real)
			if err != nil {
				return err
			}
		case mode.IsRegular():
			if len(st.files) >= st.opts.MaxFiles {
				return fmt.Errorf("%w: more than %d files below the scan root", ErrScanLimitExceeded, st.opts.MaxFiles)
			}
			st.files = append(st.files, relPath)
		}
	}
	return nil
}
