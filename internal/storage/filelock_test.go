package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockDir_Exclusive(t *testing.T) {
	dir := t.TempDir()

	unlock, err := lockDir(dir)
	if err != nil {
		t.Fatalf("lockDir() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := lockDir(dir)
		if err != nil {
			t.Errorf("second lockDir() error = %v", err)
			close(acquired)
			return
		}
		close(acquired)
		_ = second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock() error = %v", err)
	}
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestLockDir_MissingDirectory(t *testing.T) {
	if _, err := lockDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestExportDirWriter_ConcurrentWritesSameDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export")
	w := NewExportDirWriter()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Write(t.Context(), out, map[string][]byte{
				"onboarding-metadata.json": []byte(`{"n":1}`),
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("write %d: %v", i, err)
		}
	}
	if got := listDir(t, filepath.Dir(out)); len(got) != 1 || got[0] != "export" {
		t.Errorf("parent contents = %v, want only the export", got)
	}
}
