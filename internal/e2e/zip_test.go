package e2e

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// writeZip packs files from dir into <tmp>/<base of dir>.zip
func writeZip(t *testing.T, dir string, names ...string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), filepath.Base(dir)+".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			t.Fatalf("read %s: %v", n, err)
		}
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("zip entry %s: %v", n, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return zipPath
}
