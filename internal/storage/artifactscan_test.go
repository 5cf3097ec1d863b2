package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestArtifactScanner_ListsSortedRelativePaths(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "runbooks/api.md", "# api")
	writeTestFile(t, root, "dashboards/api.json", "{}")
	writeTestFile(t, root, "alerts.yaml", "groups: []")

	got, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"alerts.yaml", "dashboards/api.json", "runbooks/api.md"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestArtifactScanner_EmptyRoot(t *testing.T) {
	got, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan = %v, want nothing", got)
	}
}

func TestArtifactScanner_MissingRoot(t *testing.T) {
	if _, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for a missing root")
	}
}

func TestArtifactScanner_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "file.txt", "x")
	if _, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), filepath.Join(root, "file.txt")); err == nil {
		t.Fatal("expected error when the root is a file")
	}
}

// --- Symlinks ---

func TestArtifactScanner_FollowsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	writeTestFile(t, shared, "slo.yaml", "kind: SLO")
	symlink(t, shared, filepath.Join(root, "shared"))

	got, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0] != "shared/slo.yaml" {
		t.Errorf("Scan = %v, want [shared/slo.yaml]", got)
	}
}

func TestArtifactScanner_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a/b/file.txt", "x")
	symlink(t, filepath.Join(root, "a"), filepath.Join(root, "a", "b", "loop"))

	_, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if !errors.Is(err, ErrSymlinkCycle) {
		t.Fatalf("err = %v, want ErrSymlinkCycle", err)
	}
}

func TestArtifactScanner_SymlinkToRootIsCycle(t *testing.T) {
	root := t.TempDir()
	symlink(t, root, filepath.Join(root, "self"))

	_, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if !errors.Is(err, ErrSymlinkCycle) {
		t.Fatalf("err = %v, want ErrSymlinkCycle", err)
	}
}

func TestArtifactScanner_DiamondIsNotCycle(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	writeTestFile(t, shared, "x.yaml", "x")
	symlink(t, shared, filepath.Join(root, "left"))
	symlink(t, shared, filepath.Join(root, "right"))

	got, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if strings.Join(got, ",") != "left/x.yaml,right/x.yaml" {
		t.Errorf("Scan = %v", got)
	}
}

func TestArtifactScanner_SkipsDanglingSymlink(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "real.yaml", "x")
	symlink(t, filepath.Join(root, "gone"), filepath.Join(root, "dangling"))

	got, err := NewArtifactScanner(ScanOptions{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0] != "real.yaml" {
		t.Errorf("Scan = %v, want [real.yaml]", got)
	}
}

// --- Bounds ---

func TestArtifactScanner_FileLimit(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeTestFile(t, root, name, "x")
	}

	if _, err := NewArtifactScanner(ScanOptions{MaxFiles: 3}).Scan(context.Background(), root); err != nil {
		t.Fatalf("exactly MaxFiles files must scan: %v", err)
	}
	_, err := NewArtifactScanner(ScanOptions{MaxFiles: 2}).Scan(context.Background(), root)
	if !errors.Is(err, ErrScanLimitExceeded) {
		t.Fatalf("err = %v, want ErrScanLimitExceeded", err)
	}
}

func TestArtifactScanner_DepthLimit(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "top.yaml", "x")
	writeTestFile(t, root, "one/mid.yaml", "x")
	writeTestFile(t, root, "one/two/deep.yaml", "x")

	got, err := NewArtifactScanner(ScanOptions{MaxDepth: 1}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if strings.Join(got, ",") != "one/mid.yaml,top.yaml" {
		t.Errorf("Scan = %v, want files at depth <= 1", got)
	}
}

func TestArtifactScanner_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.yaml", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewArtifactScanner(ScanOptions{}).Scan(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
