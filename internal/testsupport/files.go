package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteDocument places a document file under the given directory and returns
// its reference relative to that directory.
func WriteDocument(t testing.TB, dir, name string, contents []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return name
}
