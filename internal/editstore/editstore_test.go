package editstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/dvdarchive/internal/videoref"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "edits.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open edit store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCut(t *testing.T, in, out int64, name string) videoref.EditCut {
	t.Helper()
	c, err := videoref.NewEditCut(in, out, name, out+100)
	if err != nil {
		t.Fatalf("NewEditCut: %v", err)
	}
	return c
}

func TestReadReturnsGlobalWhenNoProjectOverride(t *testing.T) {
	s := openTestStore(t)
	globals := []videoref.EditCut{mustCut(t, 0, 100, "intro")}

	if err := s.Write("/media/a.mkv", "", globals); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.Read("/media/a.mkv", "project-x")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].ClipName != "intro" {
		t.Fatalf("got %+v, want global fallback", got)
	}
}

func TestReadPrefersNonEmptyProjectOverride(t *testing.T) {
	s := openTestStore(t)
	globals := []videoref.EditCut{mustCut(t, 0, 100, "global")}
	projectCuts := []videoref.EditCut{mustCut(t, 10, 90, "project")}

	if err := s.Write("/media/a.mkv", "", globals); err != nil {
		t.Fatalf("write global: %v", err)
	}
	if err := s.Write("/media/a.mkv", "proj", projectCuts); err != nil {
		t.Fatalf("write project: %v", err)
	}

	got, err := s.Read("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].ClipName != "project" {
		t.Fatalf("got %+v, want project override", got)
	}
}

func TestDeleteProjectOnlyRemovesOverride(t *testing.T) {
	s := openTestStore(t)
	globals := []videoref.EditCut{mustCut(t, 0, 100, "global")}
	projectCuts := []videoref.EditCut{mustCut(t, 10, 90, "project")}
	s.Write("/media/a.mkv", "", globals)
	s.Write("/media/a.mkv", "proj", projectCuts)

	if err := s.Delete("/media/a.mkv", "proj"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := s.Read("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].ClipName != "global" {
		t.Fatalf("expected fallback to global after project delete, got %+v", got)
	}
}

func TestPromoteCombineUnionsWithGlobal(t *testing.T) {
	s := openTestStore(t)
	globals := []videoref.EditCut{mustCut(t, 0, 50, "global")}
	projectCuts := []videoref.EditCut{mustCut(t, 60, 90, "project")}
	s.Write("/media/a.mkv", "", globals)
	s.Write("/media/a.mkv", "proj", projectCuts)

	if err := s.Promote("/media/a.mkv", "proj", true); err != nil {
		t.Fatalf("promote: %v", err)
	}

	got, err := s.Read("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected combined global cuts, got %+v", got)
	}

	vis, err := s.Visibility("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("visibility: %v", err)
	}
	if vis != "global" {
		t.Fatalf("expected visibility=global after promote, got %q", vis)
	}
}

func TestVisibilityReportsProjectOrGlobal(t *testing.T) {
	s := openTestStore(t)
	s.Write("/media/a.mkv", "", []videoref.EditCut{mustCut(t, 0, 10, "g")})

	vis, err := s.Visibility("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("visibility: %v", err)
	}
	if vis != "global" {
		t.Fatalf("got %q, want global", vis)
	}

	s.Write("/media/a.mkv", "proj", []videoref.EditCut{mustCut(t, 1, 9, "p")})
	vis, err = s.Visibility("/media/a.mkv", "proj")
	if err != nil {
		t.Fatalf("visibility: %v", err)
	}
	if vis != "project" {
		t.Fatalf("got %q, want project", vis)
	}
}

func TestMigrateLegacyJSONImportsAndRenames(t *testing.T) {
	s := openTestStore(t)
	legacyDir := t.TempDir()

	blob := legacyBlob{
		FilePath: "/media/legacy.mkv",
		Cuts:     []videoref.EditCut{mustCut(t, 5, 20, "kept")},
	}
	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	legacyFile := filepath.Join(legacyDir, "blob.json")
	if err := os.WriteFile(legacyFile, data, 0644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	if err := s.MigrateLegacyJSON(legacyDir); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := os.Stat(legacyFile); !os.IsNotExist(err) {
		t.Fatalf("expected legacy file to be renamed away, stat err: %v", err)
	}
	if _, err := os.Stat(legacyFile + ".backup"); err != nil {
		t.Fatalf("expected .backup file, stat err: %v", err)
	}

	got, err := s.Read("/media/legacy.mkv", "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].ClipName != "kept" {
		t.Fatalf("got %+v, want migrated cut", got)
	}
}

func TestMigrateLegacyJSONIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	legacyDir := t.TempDir()

	blob := legacyBlob{FilePath: "/media/legacy.mkv", Cuts: []videoref.EditCut{mustCut(t, 5, 20, "kept")}}
	data, _ := json.Marshal(blob)
	legacyFile := filepath.Join(legacyDir, "blob.json")
	os.WriteFile(legacyFile, data, 0644)

	if err := s.MigrateLegacyJSON(legacyDir); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	// Re-running against an empty dir (file already renamed) must be a no-op, not an error.
	if err := s.MigrateLegacyJSON(legacyDir); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
