package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/dvdarchive/internal/cut"
)

func writeTestFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCopyFolderIntoFoldersRejectsSmallFolderSize(t *testing.T) {
	c := NewCopier(cut.NewEngine(nil))
	err := c.CopyFolderIntoFolders(context.Background(), nil, t.TempDir(), t.TempDir(), "menu", 0.25, SHA256)
	if err == nil {
		t.Fatal("expected error for folder_size_gb <= 0.5")
	}
}

func TestCopyFolderIntoFoldersRejectsSameSrcAndDest(t *testing.T) {
	dir := t.TempDir()
	c := NewCopier(cut.NewEngine(nil))
	err := c.CopyFolderIntoFolders(context.Background(), nil, dir, dir, "menu", 1.0, SHA256)
	if err == nil {
		t.Fatal("expected error when src == dest_root")
	}
}

func TestCopyFolderIntoFoldersCopiesAndWritesSidecars(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "a.mkv"), []byte("hello world"))
	writeTestFile(t, filepath.Join(src, "b.mkv"), []byte("second file"))

	c := NewCopier(cut.NewEngine(nil))
	if err := c.CopyFolderIntoFolders(context.Background(), nil, src, dest, "menu1", 1.0, SHA256); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	diskDir := filepath.Join(dest, "menu1", "Disk_01")
	entries, err := os.ReadDir(diskDir)
	if err != nil {
		t.Fatalf("read disk dir: %v", err)
	}

	var copiedFiles, sidecars int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sha256" {
			sidecars++
		} else {
			copiedFiles++
		}
	}
	if copiedFiles != 2 {
		t.Fatalf("expected 2 copied files, got %d", copiedFiles)
	}
	if sidecars != 2 {
		t.Fatalf("expected 2 sidecar digests, got %d", sidecars)
	}
}

func TestVerifyFilesIntegrityFlagsMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "orphan.mkv"), []byte("no sidecar"))

	failures, err := VerifyFilesIntegrity(dir, SHA256)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(failures) != 1 || failures[0].Reason != "missing sidecar digest" {
		t.Fatalf("got %+v", failures)
	}
}

func TestVerifyFilesIntegrityPassesWithMatchingSidecar(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "good.mkv")
	writeTestFile(t, target, []byte("verified content"))

	digest, err := hashFile(target, SHA256)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	writeTestFile(t, target+".sha256", []byte(digest+"\n"))

	failures, err := VerifyFilesIntegrity(dir, SHA256)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
}
