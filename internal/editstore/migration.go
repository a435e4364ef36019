package editstore

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// legacyBlob is the flat pre-project-scoping shape spec §4.6's
// backwards-compat note describes: a single unscoped cut list per path,
// with the path carried as a sidecar field since the legacy layout
// predates project scoping and never needed a composite key.
type legacyBlob struct {
	FilePath string             `json:"file_path"`
	Cuts     []videoref.EditCut `json:"cuts"`
}

// MigrateLegacyJSON reads a directory of one-file-per-path legacy JSON
// blobs and imports each as that path's global_cuts. Migration is
// one-way and idempotent: a path with an existing row is left alone,
// and a successfully migrated blob is renamed to .backup so it can
// never be re-imported, mirroring the teacher's migration.go renaming
// its source file on success so NeedsMigration never re-fires.
func (s *Store) MigrateLegacyJSON(legacyDir string) error {
	entries, err := os.ReadDir(legacyDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy edit-list directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		legacyPath := legacyDir + "/" + entry.Name()
		if err := s.migrateOne(legacyPath); err != nil {
			logger.Warn("editstore: skipping unreadable legacy blob", "path", legacyPath, "error", err)
		}
	}
	return nil
}

func (s *Store) migrateOne(legacyPath string) error {
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return err
	}

	var blob legacyBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		_ = os.Rename(legacyPath, legacyPath+".corrupt")
		return fmt.Errorf("parse legacy blob: %w", err)
	}
	if blob.FilePath == "" {
		_ = os.Rename(legacyPath, legacyPath+".corrupt")
		return fmt.Errorf("legacy blob missing file_path: %s", legacyPath)
	}

	s.mu.Lock()
	_, alreadyMigrated, loadErr := s.loadLocked(blob.FilePath)
	if loadErr == nil && !alreadyMigrated {
		loadErr = s.saveLocked(blob.FilePath, cutRow{
			GlobalCuts:  blob.Cuts,
			ProjectCuts: map[string][]videoref.EditCut{},
		})
		if loadErr == nil {
			_, loadErr = s.db.Exec(
				"UPDATE edit_lists SET migrated_legacy = 1 WHERE file_path = ?", blob.FilePath,
			)
		}
	}
	s.mu.Unlock()
	if loadErr != nil {
		return loadErr
	}

	return os.Rename(legacyPath, legacyPath+".backup")
}
